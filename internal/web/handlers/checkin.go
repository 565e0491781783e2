package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// CheckInHandler handles recognition endpoints: check-in and one-to-one verify.
type CheckInHandler struct {
	service Service
}

// NewCheckInHandler creates a new check-in handler.
func NewCheckInHandler(service Service) *CheckInHandler {
	return &CheckInHandler{service: service}
}

// CheckIn recognizes the face in an uploaded image and records attendance on
// a match. The response always carries the structured outcome; a rejection is
// a 200 with matched=false, not an HTTP error.
func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	imageData, err := readMultipartFile(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.CheckIn(r.Context(), imageData, r.FormValue("notes"))
	if err != nil {
		log.Printf("web: check-in failed: %v", err)
		respondError(w, http.StatusInternalServerError, "check-in failed")
		return
	}

	if !result.Outcome.IsMatch {
		respondJSON(w, http.StatusOK, map[string]any{
			"matched": false,
			"reason":  result.Outcome.Reason,
			"detail":  result.Outcome.Detail,
			"model":   result.Outcome.Model,
		})
		return
	}

	response := map[string]any{
		"matched":     true,
		"identity_id": result.Outcome.IdentityID,
		"confidence":  result.Outcome.Confidence,
		"distance":    result.Outcome.Distance,
		"model":       result.Outcome.Model,
		"duplicate":   result.Duplicate,
	}
	if result.Record != nil {
		response["record"] = toRecordJSON(*result.Record)
	}
	respondJSON(w, http.StatusOK, response)
}

// Verify compares two uploaded face images under the active profile.
func (h *CheckInHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	first, err := readMultipartFile(r, "first")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	second, err := readMultipartFile(r, "second")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Verify(r.Context(), first, second)
	if err != nil {
		log.Printf("web: verify failed: %v", err)
		respondError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	response := map[string]any{
		"matched":    result.IsMatch,
		"distance":   result.Distance,
		"confidence": result.Confidence,
		"threshold":  result.Threshold,
		"model":      result.Model,
	}
	if result.Detail != "" {
		response["detail"] = result.Detail
	}
	respondJSON(w, http.StatusOK, response)
}
