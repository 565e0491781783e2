package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentitiesHandler handles identity enrollment and management endpoints.
type IdentitiesHandler struct {
	store   database.IdentityStore
	service Service
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(store database.IdentityStore, service Service) *IdentitiesHandler {
	return &IdentitiesHandler{store: store, service: service}
}

// List returns all enrolled identities, optionally filtered by normalized
// full name via the name query parameter.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		identities []database.Identity
		err        error
	)
	if name := r.URL.Query().Get("name"); name != "" {
		identities, err = h.store.SearchByName(r.Context(), name)
	} else {
		identities, err = h.store.List(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	out := make([]identityJSON, 0, len(identities))
	for _, i := range identities {
		out = append(out, toIdentityJSON(i))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identities": out,
		"count":      len(out),
	})
}

// Get returns a single identity.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	identity, err := h.store.Get(r.Context(), id)
	if errors.Is(err, database.ErrIdentityNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load identity")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityJSON(*identity))
}

// Enroll creates an identity from a multipart form: id, full_name, optional
// group_name and email fields plus one or more reference images.
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	identity := &database.Identity{
		ID:        r.FormValue("id"),
		FullName:  r.FormValue("full_name"),
		GroupName: r.FormValue("group_name"),
		Email:     r.FormValue("email"),
	}
	if identity.ID == "" || identity.FullName == "" {
		respondError(w, http.StatusBadRequest, "id and full_name are required")
		return
	}

	withUploadedFiles(w, r, "images", func(paths []string) {
		err := h.service.Enroll(r.Context(), identity, paths)
		if errors.Is(err, database.ErrIdentityExists) {
			respondError(w, http.StatusConflict, "identity already exists")
			return
		}
		if err != nil {
			log.Printf("web: enrollment of %s failed: %v", sanitizeForLog(identity.ID), err)
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, toIdentityJSON(*identity))
	})
}

// Update rewrites an identity's mutable fields from a JSON body.
func (h *IdentitiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName  string `json:"full_name"`
		GroupName string `json:"group_name"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if body.FullName == "" {
		respondError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	identity := &database.Identity{
		ID:        chi.URLParam(r, "id"),
		FullName:  body.FullName,
		GroupName: body.GroupName,
		Email:     body.Email,
	}
	err := h.store.Update(r.Context(), identity)
	if errors.Is(err, database.ErrIdentityNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update identity")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete removes an identity with its reference faces and gallery images.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.service.RemoveIdentity(r.Context(), id)
	if errors.Is(err, database.ErrIdentityNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		log.Printf("web: removal of %s failed: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to remove identity")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// AddImages registers additional reference images for an enrolled identity.
func (h *IdentitiesHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	withUploadedFiles(w, r, "images", func(paths []string) {
		err := h.service.AddReferenceImages(r.Context(), id, paths)
		if errors.Is(err, database.ErrIdentityNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status": "registered",
			"images": len(paths),
		})
	})
}

// History returns an identity's attendance records, newest first.
func (h *IdentitiesHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := constants.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := h.service.History(r.Context(), id, limit)
	if errors.Is(err, database.ErrIdentityNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id": id,
		"records":     toRecordListJSON(records),
	})
}
