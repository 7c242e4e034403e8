package fingerprint

import "fmt"

// Sex is one of exactly two categories recognized by the cohort table.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Pclass values accepted by the cohort table.
var validClasses = []int{1, 2, 3}

// AgeCurve parameterizes the additive age factor: a sigmoid centered on
// Midpoint with the given Slope, overridden by a fixed ChildFactor below
// ChildThreshold. The threshold is an exclusive upper bound for the child
// branch: age exactly at the threshold uses the adult curve.
type AgeCurve struct {
	Midpoint       float64 `json:"midpoint"`
	Slope          float64 `json:"slope"`
	ChildThreshold float64 `json:"child_threshold"`
	ChildFactor    float64 `json:"child_factor"`
}

// WeightAsset holds the authored multiplier table and age-curve parameters,
// plus the imputation medians derived at training time. Loaded once at
// process start and read-only thereafter.
type WeightAsset struct {
	Version     string             `json:"version"`
	Multipliers map[string]float64 `json:"multipliers"`
	Age         AgeCurve           `json:"age_curve"`
	AgeMedian   float64            `json:"age_median"`
	FareMedian  float64            `json:"fare_median"`
}

func cohortKey(sex Sex, pclass int) string {
	return fmt.Sprintf("%s/%d", sex, pclass)
}

// DefaultWeightAsset returns the authored cohort table. The constants encode
// the qualitative ordering female/1st > female/2nd > female/3rd > male/1st >
// male/2nd > male/3rd; they are configuration, not fitted values.
func DefaultWeightAsset() WeightAsset {
	return WeightAsset{
		Version: "v1",
		Multipliers: map[string]float64{
			cohortKey(SexFemale, 1): 1.2,
			cohortKey(SexFemale, 2): 1.0,
			cohortKey(SexFemale, 3): 0.8,
			cohortKey(SexMale, 1):   0.6,
			cohortKey(SexMale, 2):   0.4,
			cohortKey(SexMale, 3):   0.2,
		},
		Age: AgeCurve{
			Midpoint:       30,
			Slope:          10,
			ChildThreshold: 10,
			ChildFactor:    0.8,
		},
		AgeMedian:  28.0,
		FareMedian: 14.4542,
	}
}

// Multiplier is the deterministic M(sex, class) lookup. A combination absent
// from the table is reported loudly; a silent zero would poison Phi.
func (w WeightAsset) Multiplier(sex Sex, pclass int) (float64, error) {
	m, ok := w.Multipliers[cohortKey(sex, pclass)]
	if !ok {
		return 0, fmt.Errorf("multiplier table has no entry for cohort %s", cohortKey(sex, pclass))
	}
	return m, nil
}

// AgeFactor is the additive A(age) term.
func (w WeightAsset) AgeFactor(age float64) float64 {
	if age < w.Age.ChildThreshold {
		return w.Age.ChildFactor
	}
	return sigmoid(-(age - w.Age.Midpoint) / w.Age.Slope)
}

// Validate checks the table is total over the six sex x class combinations
// and that the age curve is usable.
func (w WeightAsset) Validate() error {
	for _, sex := range []Sex{SexFemale, SexMale} {
		for _, class := range validClasses {
			m, ok := w.Multipliers[cohortKey(sex, class)]
			if !ok {
				return fmt.Errorf("multiplier table missing cohort %s", cohortKey(sex, class))
			}
			if m <= 0 {
				return fmt.Errorf("multiplier for cohort %s must be positive, got %v", cohortKey(sex, class), m)
			}
		}
	}
	if w.Age.Slope == 0 {
		return fmt.Errorf("age curve slope must be non-zero")
	}
	return nil
}
