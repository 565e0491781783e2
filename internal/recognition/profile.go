// Package recognition implements the face recognition decision engine:
// model profiles, the candidate resolver with its dual acceptance gate,
// and the structured match/rejection outcome types.
package recognition

import (
	"fmt"
)

// Model identifies a supported embedding model. The set is closed on
// purpose: adding a model is a compile-time change here, not a runtime
// string registration, so a typo in configuration can never silently
// select a nonexistent embedding space.
type Model string

const (
	ModelVGGFace    Model = "VGG-Face"
	ModelFacenet    Model = "Facenet"
	ModelFacenet512 Model = "Facenet512"
	ModelArcFace    Model = "ArcFace"
)

// Models lists the supported models in presentation order.
func Models() []Model {
	return []Model{ModelVGGFace, ModelFacenet, ModelFacenet512, ModelArcFace}
}

// ParseModel maps a model name to its Model constant.
func ParseModel(name string) (Model, error) {
	for _, m := range Models() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported recognition model %q (supported: %v)", name, Models())
}

func (m Model) String() string {
	return string(m)
}

// Distance metric and detector backend are fixed for the whole system.
// Thresholds are tuned for cosine distance; mixing metrics would make
// the confidence = 1 - distance conversion meaningless.
const (
	DistanceMetric  = "cosine"
	DetectorBackend = "opencv"
)

// Profile is the full configuration of one embedding/distance combination:
// the model, its metric and detector, and its tuned distance threshold.
type Profile struct {
	Model     Model
	Metric    string
	Detector  string
	Threshold float64
}

// NewProfile builds a profile for a model with its configured distance
// threshold. The threshold comes from the per-model table in config;
// it is never shared across models.
func NewProfile(model Model, threshold float64) Profile {
	return Profile{
		Model:     model,
		Metric:    DistanceMetric,
		Detector:  DetectorBackend,
		Threshold: threshold,
	}
}
