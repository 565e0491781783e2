package recognition

import (
	"fmt"
	"log"
)

// Candidate is one ranked similarity-search result: the reference image
// it matched and the cosine distance to the query (lower is better).
type Candidate struct {
	ReferencePath string
	Distance      float64
}

// Confidence converts the candidate's distance to the user-facing score.
// Cosine distance can exceed 1 for near-opposite embeddings, so confidence
// can go negative; it is deliberately not clamped — a negative value always
// fails the confidence floor and the raw number helps debugging.
func (c Candidate) Confidence() float64 {
	return 1 - c.Distance
}

// RejectReason classifies why a recognition attempt did not produce a match.
type RejectReason string

const (
	// RejectNoCandidates: the search produced nothing to gate on. Covers
	// "no face detected in the query image" and recognition backend
	// failures, both normalized by the caller into this rejection.
	RejectNoCandidates RejectReason = "no_candidates"
	// RejectAboveDistanceThreshold: best candidate failed the per-model
	// distance gate.
	RejectAboveDistanceThreshold RejectReason = "above_distance_threshold"
	// RejectBelowConfidenceFloor: best candidate passed the distance gate
	// but fell under the global confidence floor.
	RejectBelowConfidenceFloor RejectReason = "below_confidence_floor"
	// RejectIdentityNotFound: the best candidate's reference path does not
	// resolve to an enrolled identity. Indicates a corrupt gallery, not a
	// recognition failure.
	RejectIdentityNotFound RejectReason = "identity_not_found"
	// RejectEmptyGallery: no enrolled identity has any reference image, so
	// a search would be meaningless. Produced by the caller before searching.
	RejectEmptyGallery RejectReason = "empty_gallery"
)

// Outcome is the result of one recognition attempt: either a match with
// its identity and scores, or a structured rejection. Exactly one of the
// two holds; IsMatch discriminates.
type Outcome struct {
	IsMatch    bool
	IdentityID string       // set only on match
	Confidence float64      // set only on match
	Distance   float64      // set only on match
	Reason     RejectReason // set only on rejection
	Detail     string       // operator-facing explanation of a rejection
	Model      Model        // always set: the model that produced this outcome
}

// Matched builds a successful outcome.
func Matched(identityID string, c Candidate, model Model) Outcome {
	return Outcome{
		IsMatch:    true,
		IdentityID: identityID,
		Confidence: c.Confidence(),
		Distance:   c.Distance,
		Model:      model,
	}
}

// Rejected builds a rejection outcome with an operator-facing detail.
func Rejected(reason RejectReason, model Model, detail string) Outcome {
	return Outcome{
		IsMatch: false,
		Reason:  reason,
		Detail:  detail,
		Model:   model,
	}
}

// RejectedEmptyGallery is the short-circuit outcome callers must return
// when the gallery validator reports no recognizable identity. It exists
// so the check happens before any (expensive) search.
func RejectedEmptyGallery(model Model) Outcome {
	return Rejected(RejectEmptyGallery, model,
		"no enrolled identity has a reference image; enroll identities with face images first")
}

// LookupFunc resolves a reference image path to the enrolled identity that
// owns it. ok is false when the path's identity segment is unknown.
type LookupFunc func(referencePath string) (identityID string, ok bool)

// ambiguitySpread is the maximum confidence spread within the top three
// candidates for the disagreement diagnostic to fire.
const ambiguitySpread = 0.05

// Resolve applies the decision algorithm to a ranked candidate list:
//
//  1. no candidates -> Rejected(no_candidates)
//  2. dual gate on the best candidate: distance must beat the per-model
//     threshold AND confidence must reach the global floor; both are
//     required because the threshold is tuned per-model for separability
//     while the floor is a model-independent user-facing guarantee
//  3. the best candidate's reference path must resolve to an enrolled
//     identity, otherwise the gallery is corrupt -> Rejected(identity_not_found)
//
// Candidates must be sorted ascending by distance; ties keep the search's
// ordering, Resolve never re-sorts. The function is pure apart from a
// diagnostic log line and always returns exactly one of match/rejection.
// The error return fires only for out-of-range gate parameters, which is
// a programming mistake rather than a recognition result.
func Resolve(candidates []Candidate, profile Profile, minConfidence float64, lookup LookupFunc) (Outcome, error) {
	if profile.Threshold < 0 || profile.Threshold > 1 {
		return Outcome{}, fmt.Errorf("distance threshold %.4f out of range [0,1]", profile.Threshold)
	}
	if minConfidence < 0 || minConfidence > 1 {
		return Outcome{}, fmt.Errorf("minimum confidence %.4f out of range [0,1]", minConfidence)
	}

	if len(candidates) == 0 {
		return Rejected(RejectNoCandidates, profile.Model, "search returned no candidates"), nil
	}

	best := candidates[0]
	confidence := best.Confidence()

	// Dual gate. When both fail, report the distance failure: it is the
	// primary signal, the floor is the secondary guarantee.
	if best.Distance >= profile.Threshold {
		return Rejected(RejectAboveDistanceThreshold, profile.Model,
			fmt.Sprintf("distance %.4f >= threshold %.4f for model %s", best.Distance, profile.Threshold, profile.Model)), nil
	}
	if confidence < minConfidence {
		return Rejected(RejectBelowConfidenceFloor, profile.Model,
			fmt.Sprintf("confidence %.4f < minimum %.4f", confidence, minConfidence)), nil
	}

	identityID, ok := lookup(best.ReferencePath)
	if !ok {
		return Rejected(RejectIdentityNotFound, profile.Model,
			fmt.Sprintf("reference path %q does not resolve to an enrolled identity (corrupt gallery?)", best.ReferencePath)), nil
	}

	logTopDisagreement(candidates, profile.Model, lookup)

	return Matched(identityID, best, profile.Model), nil
}

// logTopDisagreement flags the low-confidence signal where the top three
// candidates belong to three different identities at nearly the same
// confidence. Diagnostic only: the dual gate is the sole accept/reject
// authority, so this never changes the outcome.
func logTopDisagreement(candidates []Candidate, model Model, lookup LookupFunc) {
	if len(candidates) < 3 {
		return
	}

	top := candidates[:3]
	seen := make(map[string]struct{}, 3)
	for _, c := range top {
		id, ok := lookup(c.ReferencePath)
		if !ok {
			return
		}
		seen[id] = struct{}{}
	}
	if len(seen) < 3 {
		return
	}

	spread := top[2].Confidence() - top[0].Confidence()
	if spread < 0 {
		spread = -spread
	}
	if spread <= ambiguitySpread {
		log.Printf("recognition: top 3 candidates disagree across %d identities within %.2f confidence (model %s) - possible lookalike or poor capture",
			len(seen), spread, model)
	}
}
