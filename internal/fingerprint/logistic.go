package fingerprint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ScalerAsset holds per-feature centering and scaling moments fitted at
// training time. A stored std of 0 (zero-variance feature) is substituted
// with 1 at transform time so scoring never divides by zero.
type ScalerAsset struct {
	Version  string    `json:"version"`
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Std      []float64 `json:"std"`
}

// FitScaler computes per-feature mean and standard deviation over the
// training matrix. Columns follow the given feature name order.
func FitScaler(x [][]float64, names []string, version string) (ScalerAsset, error) {
	if len(x) == 0 {
		return ScalerAsset{}, fmt.Errorf("cannot fit scaler on empty matrix")
	}
	cols := len(names)
	for i, row := range x {
		if len(row) != cols {
			return ScalerAsset{}, fmt.Errorf("row %d has %d features, expected %d", i, len(row), cols)
		}
	}

	s := ScalerAsset{
		Version:  version,
		Features: append([]string(nil), names...),
		Mean:     make([]float64, cols),
		Std:      make([]float64, cols),
	}
	col := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		s.Std[j] = stat.StdDev(col, nil)
		if math.IsNaN(s.Std[j]) {
			s.Std[j] = 0
		}
	}
	return s, nil
}

// Transform applies (x - mean) / std elementwise, substituting std = 1 for
// zero-variance features.
func (s ScalerAsset) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("feature vector has %d entries, scaler expects %d", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		std := s.Std[j]
		if std == 0 {
			std = 1
		}
		out[j] = (v - s.Mean[j]) / std
	}
	return out, nil
}

// Validate checks internal consistency of the fitted moments.
func (s ScalerAsset) Validate() error {
	if len(s.Features) == 0 {
		return fmt.Errorf("scaler has no features")
	}
	if len(s.Mean) != len(s.Features) || len(s.Std) != len(s.Features) {
		return fmt.Errorf("scaler moments do not match feature list: %d features, %d means, %d stds",
			len(s.Features), len(s.Mean), len(s.Std))
	}
	for j, std := range s.Std {
		if std < 0 || math.IsNaN(std) || math.IsInf(std, 0) {
			return fmt.Errorf("scaler std for %s is invalid: %v", s.Features[j], std)
		}
	}
	return nil
}

// ClassifierAsset is a serialized logistic regression model: a coefficient
// per scaled feature plus an intercept.
type ClassifierAsset struct {
	Version      string    `json:"version"`
	Features     []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// PredictProba returns sigmoid(w . x + b) for an already scaled vector.
func (c ClassifierAsset) PredictProba(xScaled []float64) (float64, error) {
	if len(xScaled) != len(c.Coefficients) {
		return 0, fmt.Errorf("feature vector has %d entries, classifier expects %d", len(xScaled), len(c.Coefficients))
	}
	return sigmoid(floats.Dot(c.Coefficients, xScaled) + c.Intercept), nil
}

// Validate checks the coefficient vector matches the feature list.
func (c ClassifierAsset) Validate() error {
	if len(c.Features) == 0 {
		return fmt.Errorf("classifier has no features")
	}
	if len(c.Coefficients) != len(c.Features) {
		return fmt.Errorf("classifier has %d coefficients for %d features", len(c.Coefficients), len(c.Features))
	}
	for j, w := range c.Coefficients {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("classifier coefficient for %s is invalid: %v", c.Features[j], w)
		}
	}
	return nil
}

// LogisticConfig controls the batch gradient-descent fit. The defaults are
// deliberately conservative; the fit is full-batch and therefore fully
// deterministic for a given input ordering.
type LogisticConfig struct {
	LearningRate float64
	Iterations   int
	L2           float64
}

// DefaultLogisticConfig returns the trainer defaults.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{LearningRate: 0.1, Iterations: 2000, L2: 1e-4}
}

// FitLogistic fits a binary logistic regression on scaled features using
// full-batch gradient descent.
func FitLogistic(x [][]float64, y []int, names []string, version string, cfg LogisticConfig) (ClassifierAsset, error) {
	if len(x) == 0 {
		return ClassifierAsset{}, fmt.Errorf("cannot fit classifier on empty matrix")
	}
	if len(x) != len(y) {
		return ClassifierAsset{}, fmt.Errorf("feature matrix has %d rows but %d labels", len(x), len(y))
	}
	cols := len(names)
	for i, row := range x {
		if len(row) != cols {
			return ClassifierAsset{}, fmt.Errorf("row %d has %d features, expected %d", i, len(row), cols)
		}
		if y[i] != 0 && y[i] != 1 {
			return ClassifierAsset{}, fmt.Errorf("label at row %d must be 0 or 1, got %d", i, y[i])
		}
	}
	if cfg.Iterations <= 0 || cfg.LearningRate <= 0 {
		return ClassifierAsset{}, fmt.Errorf("iterations and learning rate must be positive")
	}

	w := make([]float64, cols)
	b := 0.0
	grad := make([]float64, cols)
	n := float64(len(x))

	for it := 0; it < cfg.Iterations; it++ {
		for j := range grad {
			grad[j] = 0
		}
		gradB := 0.0
		for i, row := range x {
			p := sigmoid(floats.Dot(w, row) + b)
			// clamp away from the asymptotes so the gradient stays finite
			p = clip(p, 1e-12, 1-1e-12)
			diff := p - float64(y[i])
			floats.AddScaled(grad, diff, row)
			gradB += diff
		}
		for j := range w {
			w[j] -= cfg.LearningRate * (grad[j]/n + cfg.L2*w[j])
		}
		b -= cfg.LearningRate * gradB / n
	}

	return ClassifierAsset{
		Version:      version,
		Features:     append([]string(nil), names...),
		Coefficients: w,
		Intercept:    b,
	}, nil
}
