package fingerprint

import (
	"strings"
	"testing"

	"github.com/semiprime/survival-matrix/internal/types"
)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestPreprocessValidRecord(t *testing.T) {
	w := DefaultWeightAsset()

	rec := types.PassengerRecord{
		Name:     "Braund, Mr. Owen Harris",
		Pclass:   intPtr(3),
		Sex:      "male",
		Age:      floatPtr(22),
		SibSp:    floatPtr(1),
		Parch:    floatPtr(0),
		Fare:     floatPtr(7.25),
		Embarked: "S",
	}

	f, err := Preprocess(rec, w)
	if err != nil {
		t.Fatalf("Preprocess returned error: %v", err)
	}

	if f.Sex != SexMale || f.Pclass != 3 {
		t.Errorf("cohort = (%s, %d), want (male, 3)", f.Sex, f.Pclass)
	}
	if f.Age != 22 || f.Fare != 7.25 {
		t.Errorf("age/fare = %v/%v, want 22/7.25", f.Age, f.Fare)
	}
	if f.FamilySize != 2 || f.IsAlone != 0 {
		t.Errorf("family_size/is_alone = %v/%v, want 2/0", f.FamilySize, f.IsAlone)
	}
	if f.IsFemale != 0 || f.HasCabin != 0 || f.IsChild != 0 {
		t.Errorf("flags = female:%v cabin:%v child:%v, want all 0", f.IsFemale, f.HasCabin, f.IsChild)
	}
	if f.Pclass3 != 1 || f.Pclass1 != 0 || f.Pclass2 != 0 {
		t.Errorf("class dummies = %v/%v/%v, want 0/0/1", f.Pclass1, f.Pclass2, f.Pclass3)
	}
	if f.EmbarkedS != 1 || f.EmbarkedC != 0 || f.EmbarkedQ != 0 {
		t.Errorf("embarked dummies = %v/%v/%v, want 0/0/1", f.EmbarkedC, f.EmbarkedQ, f.EmbarkedS)
	}
}

func TestPreprocessImputation(t *testing.T) {
	w := DefaultWeightAsset()

	tests := []struct {
		name  string
		rec   types.PassengerRecord
		check func(t *testing.T, f Features)
	}{
		{
			name: "missing age imputed from median",
			rec:  types.PassengerRecord{Pclass: intPtr(1), Sex: "female"},
			check: func(t *testing.T, f Features) {
				if f.Age != w.AgeMedian {
					t.Errorf("Age = %v, want median %v", f.Age, w.AgeMedian)
				}
			},
		},
		{
			name: "missing fare imputed from median",
			rec:  types.PassengerRecord{Pclass: intPtr(2), Sex: "male"},
			check: func(t *testing.T, f Features) {
				if f.Fare != w.FareMedian {
					t.Errorf("Fare = %v, want median %v", f.Fare, w.FareMedian)
				}
			},
		},
		{
			name: "missing sex defaults to male",
			rec:  types.PassengerRecord{Pclass: intPtr(3)},
			check: func(t *testing.T, f Features) {
				if f.Sex != SexMale || f.IsFemale != 0 {
					t.Errorf("Sex = %s, want male", f.Sex)
				}
			},
		},
		{
			name: "missing class defaults to third",
			rec:  types.PassengerRecord{Sex: "female"},
			check: func(t *testing.T, f Features) {
				if f.Pclass != 3 {
					t.Errorf("Pclass = %d, want 3", f.Pclass)
				}
			},
		},
		{
			name: "missing counts default to zero and alone",
			rec:  types.PassengerRecord{Pclass: intPtr(3), Sex: "male"},
			check: func(t *testing.T, f Features) {
				if f.FamilySize != 1 || f.IsAlone != 1 {
					t.Errorf("family_size/is_alone = %v/%v, want 1/1", f.FamilySize, f.IsAlone)
				}
			},
		},
		{
			name: "missing embarked defaults to S",
			rec:  types.PassengerRecord{Pclass: intPtr(3), Sex: "male"},
			check: func(t *testing.T, f Features) {
				if f.EmbarkedS != 1 {
					t.Errorf("EmbarkedS = %v, want 1", f.EmbarkedS)
				}
			},
		},
		{
			name: "case insensitive categories",
			rec:  types.PassengerRecord{Pclass: intPtr(2), Sex: "Female", Embarked: "q"},
			check: func(t *testing.T, f Features) {
				if f.Sex != SexFemale || f.EmbarkedQ != 1 {
					t.Errorf("Sex/EmbarkedQ = %s/%v, want female/1", f.Sex, f.EmbarkedQ)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Preprocess(tt.rec, w)
			if err != nil {
				t.Fatalf("Preprocess returned error: %v", err)
			}
			tt.check(t, f)
		})
	}
}

func TestPreprocessValidationErrors(t *testing.T) {
	w := DefaultWeightAsset()

	tests := []struct {
		name      string
		rec       types.PassengerRecord
		badFields []string
	}{
		{
			name:      "invalid sex",
			rec:       types.PassengerRecord{Pclass: intPtr(1), Sex: "robot"},
			badFields: []string{"Sex"},
		},
		{
			name:      "invalid class",
			rec:       types.PassengerRecord{Pclass: intPtr(5), Sex: "male"},
			badFields: []string{"Pclass"},
		},
		{
			name:      "invalid embarked",
			rec:       types.PassengerRecord{Pclass: intPtr(1), Sex: "male", Embarked: "X"},
			badFields: []string{"Embarked"},
		},
		{
			name:      "negative age",
			rec:       types.PassengerRecord{Pclass: intPtr(1), Sex: "male", Age: floatPtr(-1)},
			badFields: []string{"Age"},
		},
		{
			name:      "negative fare",
			rec:       types.PassengerRecord{Pclass: intPtr(1), Sex: "male", Fare: floatPtr(-3)},
			badFields: []string{"Fare"},
		},
		{
			name:      "all bad fields reported together",
			rec:       types.PassengerRecord{Pclass: intPtr(0), Sex: "unknown", Embarked: "Z"},
			badFields: []string{"Embarked", "Pclass", "Sex"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess(tt.rec, w)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if len(ve.Fields) != len(tt.badFields) {
				t.Errorf("got %d bad fields, want %d: %v", len(ve.Fields), len(tt.badFields), ve.Fields)
			}
			for _, field := range tt.badFields {
				if _, ok := ve.Fields[field]; !ok {
					t.Errorf("expected field %s in validation error, got %v", field, ve.Fields)
				}
				if !strings.Contains(ve.Error(), field) {
					t.Errorf("error message %q does not mention %s", ve.Error(), field)
				}
			}
		})
	}
}

func TestVectorMatchesFeatureNames(t *testing.T) {
	w := DefaultWeightAsset()
	f, err := Preprocess(types.PassengerRecord{Pclass: intPtr(1), Sex: "female"}, w)
	if err != nil {
		t.Fatalf("Preprocess returned error: %v", err)
	}
	if len(f.Vector()) != len(FeatureNames()) {
		t.Errorf("Vector has %d entries, FeatureNames has %d", len(f.Vector()), len(FeatureNames()))
	}
}
