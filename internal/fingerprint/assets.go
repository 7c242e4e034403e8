package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AssetBundle is the co-versioned trio required for scoring. Partial bundles
// are never constructed: all three artifacts parse and validate or the load
// fails as a unit.
type AssetBundle struct {
	Weights    WeightAsset
	Scaler     ScalerAsset
	Classifier ClassifierAsset
}

// AssetStore reads and writes the bundle under a shared filename prefix:
// <prefix>_weights.json, <prefix>_scaler.json, <prefix>_classifier.json.
type AssetStore struct {
	prefix string
}

// NewAssetStore creates a store for the given prefix. The prefix may contain
// a directory component.
func NewAssetStore(prefix string) *AssetStore {
	return &AssetStore{prefix: prefix}
}

func (s *AssetStore) weightsPath() string    { return s.prefix + "_weights.json" }
func (s *AssetStore) scalerPath() string     { return s.prefix + "_scaler.json" }
func (s *AssetStore) classifierPath() string { return s.prefix + "_classifier.json" }
func (s *AssetStore) summaryPath() string    { return s.prefix + "_summary.json" }

// Prefix returns the configured asset prefix.
func (s *AssetStore) Prefix() string { return s.prefix }

func readJSON(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open asset file %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("failed to decode asset file %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create asset directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create asset file %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode asset file %s: %w", path, err)
	}
	return nil
}

// Load reads and validates all three artifacts. Any missing or malformed
// file, a version mismatch between the three, or a feature-list mismatch
// between scaler and classifier rejects the whole bundle.
func (s *AssetStore) Load() (*AssetBundle, error) {
	var bundle AssetBundle

	if err := readJSON(s.weightsPath(), &bundle.Weights); err != nil {
		return nil, err
	}
	if err := readJSON(s.scalerPath(), &bundle.Scaler); err != nil {
		return nil, err
	}
	if err := readJSON(s.classifierPath(), &bundle.Classifier); err != nil {
		return nil, err
	}

	if err := bundle.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("weight asset invalid: %w", err)
	}
	if err := bundle.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("scaler asset invalid: %w", err)
	}
	if err := bundle.Classifier.Validate(); err != nil {
		return nil, fmt.Errorf("classifier asset invalid: %w", err)
	}

	if bundle.Weights.Version != bundle.Scaler.Version || bundle.Scaler.Version != bundle.Classifier.Version {
		return nil, fmt.Errorf("asset bundle version mismatch: weights=%s scaler=%s classifier=%s",
			bundle.Weights.Version, bundle.Scaler.Version, bundle.Classifier.Version)
	}

	want := classifierFeatures()
	if len(bundle.Scaler.Features) != len(want) || len(bundle.Classifier.Features) != len(want) {
		return nil, fmt.Errorf("asset bundle feature layout mismatch: expected %d features, scaler has %d, classifier has %d",
			len(want), len(bundle.Scaler.Features), len(bundle.Classifier.Features))
	}
	for i, name := range want {
		if bundle.Scaler.Features[i] != name || bundle.Classifier.Features[i] != name {
			return nil, fmt.Errorf("asset bundle feature %d mismatch: expected %s, scaler has %s, classifier has %s",
				i, name, bundle.Scaler.Features[i], bundle.Classifier.Features[i])
		}
	}

	return &bundle, nil
}

// Save writes all three artifacts. The summary is written separately by the
// trainer once fitting succeeded end to end.
func (s *AssetStore) Save(bundle *AssetBundle) error {
	if err := writeJSON(s.weightsPath(), bundle.Weights); err != nil {
		return err
	}
	if err := writeJSON(s.scalerPath(), bundle.Scaler); err != nil {
		return err
	}
	return writeJSON(s.classifierPath(), bundle.Classifier)
}

// SaveSummary writes the human-readable training report.
func (s *AssetStore) SaveSummary(summary *TrainingSummary) error {
	return writeJSON(s.summaryPath(), summary)
}
