package fingerprint

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/semiprime/survival-matrix/internal/types"
)

// TrainOptions configures the one-shot batch training job.
type TrainOptions struct {
	Version          string
	Seed             int64
	OutlierThreshold float64
	MinRows          int
	Logistic         LogisticConfig
}

// DefaultTrainOptions returns the trainer defaults. The outlier threshold is
// an authored constant treated as configuration.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Version:          "v1",
		Seed:             42,
		OutlierThreshold: 0.5,
		MinRows:          50,
		Logistic:         DefaultLogisticConfig(),
	}
}

// TrainingSummary is the human-readable report written alongside the assets.
type TrainingSummary struct {
	Rows               int                `json:"rows"`
	SurvivalRate       float64            `json:"survival_rate"`
	CohortRates        map[string]float64 `json:"cohort_survival_rates"`
	OrderingViolations []string           `json:"ordering_violations,omitempty"`
	Coefficients       []float64          `json:"coefficients"`
	Intercept          float64            `json:"intercept"`
	TrainAccuracy      float64            `json:"train_accuracy"`
	OutlierThreshold   float64            `json:"outlier_threshold"`
	OutlierCount       int                `json:"outlier_count"`
}

// Train fits the asset bundle from labeled records. All input validation
// happens before any fitting; the caller only persists the bundle after
// Train returns without error, so a failed run never leaves partial assets.
func Train(records []types.PassengerRecord, opts TrainOptions) (*AssetBundle, *TrainingSummary, error) {
	if opts.MinRows < 2 {
		opts.MinRows = 2
	}
	if len(records) < opts.MinRows {
		return nil, nil, &TrainingDataError{Reason: fmt.Sprintf("need at least %d rows, got %d", opts.MinRows, len(records))}
	}
	for i, rec := range records {
		if rec.Survived == nil {
			return nil, nil, &TrainingDataError{Reason: fmt.Sprintf("row %d has no Survived label", i+1)}
		}
	}

	weights := DefaultWeightAsset()
	weights.Version = opts.Version

	// Imputation medians come from the observed training values only.
	var ages, fares []float64
	for _, rec := range records {
		if rec.Age != nil {
			ages = append(ages, *rec.Age)
		}
		if rec.Fare != nil {
			fares = append(fares, *rec.Fare)
		}
	}
	if len(ages) > 0 {
		weights.AgeMedian = median(ages)
	}
	if len(fares) > 0 {
		weights.FareMedian = median(fares)
	}

	feats := make([]Features, len(records))
	for i, rec := range records {
		f, err := Preprocess(rec, weights)
		if err != nil {
			return nil, nil, &TrainingDataError{Reason: fmt.Sprintf("row %d: %v", i+1, err)}
		}
		feats[i] = f
	}

	names := classifierFeatures()
	x := make([][]float64, len(feats))
	y := make([]int, len(feats))
	for i, f := range feats {
		fp, err := weights.ComputeFingerprint(f)
		if err != nil {
			return nil, nil, err
		}
		x[i] = append(f.Vector(), fp.PhiN)
		y[i] = *f.Survived
	}

	// Deterministic shuffle: the fit is full-batch and order-insensitive,
	// but a fixed-seed permutation keeps repeated runs byte-identical even
	// if the optimizer later becomes stochastic.
	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(x), func(i, j int) {
		x[i], x[j] = x[j], x[i]
		y[i], y[j] = y[j], y[i]
	})

	scaler, err := FitScaler(x, names, opts.Version)
	if err != nil {
		return nil, nil, err
	}
	xScaled := make([][]float64, len(x))
	for i, row := range x {
		xScaled[i], err = scaler.Transform(row)
		if err != nil {
			return nil, nil, err
		}
	}

	classifier, err := FitLogistic(xScaled, y, names, opts.Version, opts.Logistic)
	if err != nil {
		return nil, nil, err
	}

	bundle := &AssetBundle{Weights: weights, Scaler: scaler, Classifier: classifier}

	summary := &TrainingSummary{
		Rows:             len(records),
		CohortRates:      map[string]float64{},
		Coefficients:     classifier.Coefficients,
		Intercept:        classifier.Intercept,
		OutlierThreshold: opts.OutlierThreshold,
	}

	correct := 0
	survived := 0
	for i, row := range xScaled {
		prob, err := classifier.PredictProba(row)
		if err != nil {
			return nil, nil, err
		}
		label := 0
		if prob > 0.5 {
			label = 1
		}
		if label == y[i] {
			correct++
		}
		survived += y[i]
		if math.Abs(float64(y[i])-prob) > opts.OutlierThreshold {
			summary.OutlierCount++
		}
	}
	summary.TrainAccuracy = float64(correct) / float64(len(y))
	summary.SurvivalRate = float64(survived) / float64(len(y))

	fillCohortRates(feats, summary)
	summary.OrderingViolations = orderingViolations(weights, summary.CohortRates)

	return bundle, summary, nil
}

// fillCohortRates records the observed survival rate per (sex, class)
// cohort so the authored multiplier table can be eyeballed against data.
func fillCohortRates(feats []Features, summary *TrainingSummary) {
	counts := map[string]int{}
	survived := map[string]int{}
	for _, f := range feats {
		key := cohortKey(f.Sex, f.Pclass)
		counts[key]++
		survived[key] += *f.Survived
	}
	for key, n := range counts {
		summary.CohortRates[key] = float64(survived[key]) / float64(n)
	}
}

// orderingViolations checks the observed cohort rates against the
// qualitative ordering encoded by the multiplier table. Violations are
// reported in the summary, not treated as errors: the table is authored
// configuration, not a fitted quantity.
func orderingViolations(w WeightAsset, rates map[string]float64) []string {
	type cohort struct {
		key  string
		mult float64
	}
	var cohorts []cohort
	for _, sex := range []Sex{SexFemale, SexMale} {
		for _, class := range validClasses {
			key := cohortKey(sex, class)
			cohorts = append(cohorts, cohort{key: key, mult: w.Multipliers[key]})
		}
	}

	var violations []string
	for i := 0; i < len(cohorts); i++ {
		for j := i + 1; j < len(cohorts); j++ {
			a, b := cohorts[i], cohorts[j]
			ra, okA := rates[a.key]
			rb, okB := rates[b.key]
			if !okA || !okB {
				continue
			}
			if a.mult > b.mult && ra < rb {
				violations = append(violations,
					fmt.Sprintf("%s (rate %.3f) ranked above %s (rate %.3f) by the table but observed lower", a.key, ra, b.key, rb))
			}
		}
	}
	return violations
}
