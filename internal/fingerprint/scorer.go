package fingerprint

import (
	"errors"

	"github.com/semiprime/survival-matrix/internal/types"
)

// ErrNotReady is returned for every scoring request while the asset bundle
// has not been loaded. The scorer never falls back to default assets.
var ErrNotReady = errors.New("survival model not ready: asset bundle not loaded")

// Fingerprint is the interpretable two-factor score for a record: the
// additive age term A(N), the multiplicative cohort term M(N) and their
// product Phi(N). Phi is never clipped here; when it feeds the classifier,
// clipping would destroy information.
type Fingerprint struct {
	AN   float64
	MN   float64
	PhiN float64
}

// ComputeFingerprint evaluates A(N), M(N) and Phi(N) = A(N) * M(N) for a
// preprocessed record.
func (w WeightAsset) ComputeFingerprint(f Features) (Fingerprint, error) {
	m, err := w.Multiplier(f.Sex, f.Pclass)
	if err != nil {
		return Fingerprint{}, err
	}
	a := w.AgeFactor(f.Age)
	return Fingerprint{AN: a, MN: m, PhiN: a * m}, nil
}

// classifierFeatures is the scaled input order of the classifier: the
// engineered features with Phi appended as the final column.
func classifierFeatures() []string {
	return append(FeatureNames(), "phi")
}

// Scorer is a stateless pure-function pipeline over the immutable asset
// bundle. A nil bundle puts the scorer permanently in not-ready mode; every
// request then fails fast instead of returning a default score.
type Scorer struct {
	bundle *AssetBundle
}

// NewScorer wraps a loaded asset bundle. Pass nil when loading failed; the
// scorer then reports not ready.
func NewScorer(bundle *AssetBundle) *Scorer {
	return &Scorer{bundle: bundle}
}

// Ready reports whether the asset bundle loaded successfully.
func (s *Scorer) Ready() bool {
	return s.bundle != nil
}

// Weights exposes the loaded weight asset for preprocessing context.
func (s *Scorer) Weights() (WeightAsset, error) {
	if s.bundle == nil {
		return WeightAsset{}, ErrNotReady
	}
	return s.bundle.Weights, nil
}

// Score runs the full pipeline for a single record: preprocess, fingerprint,
// scale, classify. inputIndex is echoed into the result.
func (s *Scorer) Score(rec types.PassengerRecord, inputIndex int) (types.PassengerResult, error) {
	if s.bundle == nil {
		return types.PassengerResult{}, ErrNotReady
	}

	f, err := Preprocess(rec, s.bundle.Weights)
	if err != nil {
		return types.PassengerResult{}, err
	}

	fp, err := s.bundle.Weights.ComputeFingerprint(f)
	if err != nil {
		return types.PassengerResult{}, err
	}

	vec := append(f.Vector(), fp.PhiN)
	scaled, err := s.bundle.Scaler.Transform(vec)
	if err != nil {
		return types.PassengerResult{}, err
	}
	prob, err := s.bundle.Classifier.PredictProba(scaled)
	if err != nil {
		return types.PassengerResult{}, err
	}

	res := types.PassengerResult{
		InputIndex:    inputIndex,
		PassengerName: f.Name,
		AN:            fp.AN,
		MN:            fp.MN,
		PhiN:          fp.PhiN,
		Probability:   prob,
	}
	if prob > 0.5 {
		res.Label = 1
	}
	if f.Survived != nil {
		observed := *f.Survived
		res.ObservedSurvived = &observed
		outlier := float64(observed) - prob
		res.OutlierScore = &outlier
	}
	return res, nil
}

// ScoreBatch scores every record or none: a validation failure on any record
// rejects the whole request with no partial scoring.
func (s *Scorer) ScoreBatch(recs []types.PassengerRecord) (types.PredictResponse, error) {
	if s.bundle == nil {
		return types.PredictResponse{}, ErrNotReady
	}
	results := make([]types.PassengerResult, 0, len(recs))
	for i, rec := range recs {
		res, err := s.Score(rec, i)
		if err != nil {
			return types.PredictResponse{}, err
		}
		results = append(results, res)
	}
	return types.PredictResponse{N: len(results), Results: results}, nil
}
