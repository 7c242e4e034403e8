package fingerprint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/semiprime/survival-matrix/internal/types"
)

// ValidationError enumerates the categorical fields of a record that could
// not be parsed. Missing optional numeric fields never produce one; they are
// imputed instead.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid passenger record: " + strings.Join(parts, "; ")
}

// Features is the complete engineered feature vector for one passenger.
// All fields are populated; missing inputs have been imputed or defaulted.
type Features struct {
	Name   string
	Sex    Sex
	Pclass int

	Age        float64
	Fare       float64
	SibSp      float64
	Parch      float64
	FamilySize float64
	IsAlone    float64
	IsFemale   float64
	HasCabin   float64
	IsChild    float64
	Pclass1    float64
	Pclass2    float64
	Pclass3    float64
	EmbarkedC  float64
	EmbarkedQ  float64
	EmbarkedS  float64

	Survived *int
}

// featureNames is the fixed order of the numeric vector fed to the scaler
// and classifier. The trained assets record the same list; a mismatch at
// load time rejects the bundle.
var featureNames = []string{
	"age", "fare", "sibsp", "parch", "family_size", "is_alone",
	"is_female", "has_cabin", "is_child",
	"pclass_1", "pclass_2", "pclass_3",
	"embarked_c", "embarked_q", "embarked_s",
}

// FeatureNames returns the canonical ordering of the engineered features,
// excluding the appended fingerprint term.
func FeatureNames() []string {
	return append([]string(nil), featureNames...)
}

// Vector returns the numeric features in canonical order.
func (f Features) Vector() []float64 {
	return []float64{
		f.Age, f.Fare, f.SibSp, f.Parch, f.FamilySize, f.IsAlone,
		f.IsFemale, f.HasCabin, f.IsChild,
		f.Pclass1, f.Pclass2, f.Pclass3,
		f.EmbarkedC, f.EmbarkedQ, f.EmbarkedS,
	}
}

// Preprocess normalizes a raw record into a complete feature vector. It is a
// pure function: imputation constants come from the weight asset, never from
// the batch being scored. Unparseable categorical fields are collected into
// a single ValidationError; missing numerics are imputed.
func Preprocess(rec types.PassengerRecord, w WeightAsset) (Features, error) {
	bad := map[string]string{}

	sex := SexMale // dataset mode, used only when the field is absent
	if rec.Sex != "" {
		switch strings.ToLower(strings.TrimSpace(rec.Sex)) {
		case "male":
			sex = SexMale
		case "female":
			sex = SexFemale
		default:
			bad["Sex"] = fmt.Sprintf("must be male or female, got %q", rec.Sex)
		}
	}

	pclass := 3 // dataset mode, used only when the field is absent
	if rec.Pclass != nil {
		switch *rec.Pclass {
		case 1, 2, 3:
			pclass = *rec.Pclass
		default:
			bad["Pclass"] = fmt.Sprintf("must be 1, 2 or 3, got %d", *rec.Pclass)
		}
	}

	embarked := "S"
	if rec.Embarked != "" {
		switch strings.ToUpper(strings.TrimSpace(rec.Embarked)) {
		case "C":
			embarked = "C"
		case "Q":
			embarked = "Q"
		case "S":
			embarked = "S"
		default:
			bad["Embarked"] = fmt.Sprintf("must be C, Q or S, got %q", rec.Embarked)
		}
	}

	if rec.Age != nil && *rec.Age < 0 {
		bad["Age"] = fmt.Sprintf("must be non-negative, got %v", *rec.Age)
	}
	if rec.Fare != nil && *rec.Fare < 0 {
		bad["Fare"] = fmt.Sprintf("must be non-negative, got %v", *rec.Fare)
	}

	if len(bad) > 0 {
		return Features{}, &ValidationError{Fields: bad}
	}

	age := w.AgeMedian
	if rec.Age != nil {
		age = *rec.Age
	}
	fare := w.FareMedian
	if rec.Fare != nil {
		fare = *rec.Fare
	}
	sibsp := 0.0
	if rec.SibSp != nil {
		sibsp = *rec.SibSp
	}
	parch := 0.0
	if rec.Parch != nil {
		parch = *rec.Parch
	}

	f := Features{
		Name:       rec.Name,
		Sex:        sex,
		Pclass:     pclass,
		Age:        age,
		Fare:       fare,
		SibSp:      sibsp,
		Parch:      parch,
		FamilySize: sibsp + parch + 1,
		Survived:   rec.Survived,
	}
	if f.FamilySize == 1 {
		f.IsAlone = 1
	}
	if sex == SexFemale {
		f.IsFemale = 1
	}
	if strings.TrimSpace(rec.Cabin) != "" {
		f.HasCabin = 1
	}
	if age < w.Age.ChildThreshold {
		f.IsChild = 1
	}
	switch pclass {
	case 1:
		f.Pclass1 = 1
	case 2:
		f.Pclass2 = 1
	case 3:
		f.Pclass3 = 1
	}
	switch embarked {
	case "C":
		f.EmbarkedC = 1
	case "Q":
		f.EmbarkedQ = 1
	case "S":
		f.EmbarkedS = 1
	}

	return f, nil
}
