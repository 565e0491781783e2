package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// SystemHandler handles configuration and gallery inspection endpoints.
type SystemHandler struct {
	config  *config.Config
	service Service
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(cfg *config.Config, service Service) *SystemHandler {
	return &SystemHandler{config: cfg, service: service}
}

// Models lists the supported recognition models with their tuned distance
// thresholds and marks the active one.
func (h *SystemHandler) Models(w http.ResponseWriter, r *http.Request) {
	type modelJSON struct {
		Name      string  `json:"name"`
		Threshold float64 `json:"threshold"`
		Active    bool    `json:"active"`
	}

	var models []modelJSON
	for _, m := range recognition.Models() {
		models = append(models, modelJSON{
			Name:      string(m),
			Threshold: h.config.Threshold(string(m)),
			Active:    string(m) == h.config.Recognizer.Model,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"models":         models,
		"min_confidence": h.config.Recognition.MinConfidence,
	})
}

// GalleryValidate inspects the gallery and reports identities without a
// usable reference image.
func (h *SystemHandler) GalleryValidate(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ValidateGallery()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to validate gallery")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"has_recognizable": report.HasRecognizable,
		"identity_count":   report.IdentityCount,
		"unrecognizable":   report.Unrecognizable,
	})
}
