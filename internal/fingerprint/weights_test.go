package fingerprint

import (
	"math"
	"testing"
)

func TestMultiplierTable(t *testing.T) {
	w := DefaultWeightAsset()

	tests := []struct {
		name     string
		sex      Sex
		pclass   int
		expected float64
	}{
		{"female first class", SexFemale, 1, 1.2},
		{"female second class", SexFemale, 2, 1.0},
		{"female third class", SexFemale, 3, 0.8},
		{"male first class", SexMale, 1, 0.6},
		{"male second class", SexMale, 2, 0.4},
		{"male third class", SexMale, 3, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := w.Multiplier(tt.sex, tt.pclass)
			if err != nil {
				t.Fatalf("Multiplier(%s, %d) returned error: %v", tt.sex, tt.pclass, err)
			}
			if m != tt.expected {
				t.Errorf("Multiplier(%s, %d) = %v, want %v", tt.sex, tt.pclass, m, tt.expected)
			}
		})
	}
}

func TestMultiplierMissingCohort(t *testing.T) {
	w := DefaultWeightAsset()
	delete(w.Multipliers, "male/2")

	if _, err := w.Multiplier(SexMale, 2); err == nil {
		t.Error("expected error for missing cohort, got nil")
	}
}

func TestAgeFactor(t *testing.T) {
	w := DefaultWeightAsset()

	tests := []struct {
		name     string
		age      float64
		expected float64
	}{
		{"infant uses child factor", 0, 0.8},
		{"young child uses child factor", 5, 0.8},
		{"just below threshold uses child factor", 9.999, 0.8},
		{"at threshold uses adult curve", 10, sigmoid(-(10.0 - 30.0) / 10.0)},
		{"midpoint age", 30, 0.5},
		{"elderly", 70, sigmoid(-4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := w.AgeFactor(tt.age)
			if math.Abs(result-tt.expected) > 1e-12 {
				t.Errorf("AgeFactor(%v) = %v, want %v", tt.age, result, tt.expected)
			}
		})
	}
}

func TestAgeFactorMonotonicAboveThreshold(t *testing.T) {
	w := DefaultWeightAsset()

	prev := w.AgeFactor(10)
	for age := 11.0; age <= 80; age++ {
		cur := w.AgeFactor(age)
		if cur >= prev {
			t.Fatalf("AgeFactor not strictly decreasing at age %v: %v >= %v", age, cur, prev)
		}
		prev = cur
	}
}

func TestWeightAssetValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WeightAsset)
		wantErr bool
	}{
		{"default is valid", func(w *WeightAsset) {}, false},
		{"missing cohort", func(w *WeightAsset) { delete(w.Multipliers, "female/3") }, true},
		{"zero multiplier", func(w *WeightAsset) { w.Multipliers["male/1"] = 0 }, true},
		{"negative multiplier", func(w *WeightAsset) { w.Multipliers["male/1"] = -0.5 }, true},
		{"zero slope", func(w *WeightAsset) { w.Age.Slope = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeightAsset()
			tt.mutate(&w)
			err := w.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
