package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semiprime/survival-matrix/internal/errors"
	"github.com/semiprime/survival-matrix/internal/fingerprint"
)

// testScorer builds a ready scorer around an identity-scaled bundle so the
// handlers can be exercised without trained asset files on disk.
func testScorer() *fingerprint.Scorer {
	names := append(fingerprint.FeatureNames(), "phi")
	n := len(names)

	scaler := fingerprint.ScalerAsset{
		Version:  "v1",
		Features: names,
		Mean:     make([]float64, n),
		Std:      make([]float64, n),
	}
	for i := range scaler.Std {
		scaler.Std[i] = 1
	}

	coeffs := make([]float64, n)
	coeffs[n-1] = 1

	return fingerprint.NewScorer(&fingerprint.AssetBundle{
		Weights: fingerprint.DefaultWeightAsset(),
		Scaler:  scaler,
		Classifier: fingerprint.ClassifierAsset{
			Version:      "v1",
			Features:     names,
			Coefficients: coeffs,
		},
	})
}

// setupRouter wires the scoring routes the way main does, without the
// middleware stack, so handler behavior can be tested in isolation.
func setupRouter(scorer *fingerprint.Scorer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/health", func(c *gin.Context) {
		ready := scorer.Ready()
		status := "ok"
		if !ready {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":               status,
			"timestamp":            time.Now().Format(time.RFC3339),
			"assets_loaded":        ready,
			"survival_model_ready": ready,
			"kaggleConfigured":     false,
		})
	})

	r.POST("/predict", func(c *gin.Context) {
		if !scorer.Ready() {
			respondError(c, fingerprint.ErrNotReady)
			return
		}

		var raw json.RawMessage
		if err := c.ShouldBindJSON(&raw); err != nil {
			respondError(c, errors.NewValidationError("request body must be a JSON object or array"))
			return
		}

		records, err := decodeRecords(raw)
		if err != nil {
			respondError(c, errors.NewValidationError(err.Error()))
			return
		}
		if len(records) == 0 {
			respondError(c, errors.NewValidationError("request contains no passenger records"))
			return
		}

		resp, err := scorer.ScoreBatch(records)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name          string
		scorer        *fingerprint.Scorer
		expectedReady bool
		expectedState string
	}{
		{"ready scorer", testScorer(), true, "ok"},
		{"not ready scorer", fingerprint.NewScorer(nil), false, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(tt.scorer)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/health", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedState, resp["status"])
			assert.Equal(t, tt.expectedReady, resp["assets_loaded"])
			assert.Equal(t, tt.expectedReady, resp["survival_model_ready"])
			assert.Contains(t, resp, "kaggleConfigured")
		})
	}
}

func TestPredictSingleObject(t *testing.T) {
	r := setupRouter(testScorer())

	w := postJSON(t, r, "/predict", `{"Pclass": 3, "Sex": "male", "Age": 28}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		N       int `json:"n"`
		Results []struct {
			InputIndex  int     `json:"input_index"`
			AN          float64 `json:"A_N"`
			MN          float64 `json:"M_N"`
			PhiN        float64 `json:"Phi_N"`
			Probability float64 `json:"predicted_survival_probability"`
			Label       int     `json:"predicted_label"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Equal(t, 1, resp.N)
	res := resp.Results[0]
	assert.Equal(t, 0, res.InputIndex)
	assert.Equal(t, 0.2, res.MN)
	assert.InDelta(t, res.AN*res.MN, res.PhiN, 1e-12)
	assert.Greater(t, res.Probability, 0.0)
	assert.Less(t, res.Probability, 1.0)
	assert.Contains(t, []int{0, 1}, res.Label)
}

func TestPredictArray(t *testing.T) {
	r := setupRouter(testScorer())

	body := `[
		{"Pclass": 1, "Sex": "female", "Age": 38, "Name": "Cumings, Mrs. John Bradley"},
		{"Pclass": 3, "Sex": "male", "Age": 22}
	]`
	w := postJSON(t, r, "/predict", body)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["n"])

	results := resp["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "Cumings, Mrs. John Bradley", first["passenger_name"])
	assert.Equal(t, 1.2, first["M_N"])
}

func TestPredictLabeledRecord(t *testing.T) {
	r := setupRouter(testScorer())

	w := postJSON(t, r, "/predict", `{"Pclass": 1, "Sex": "female", "Age": 30, "Survived": 1}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	res := resp["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(1), res["observed_survived"])
	assert.Contains(t, res, "outlier_score")
}

func TestPredictValidationFailures(t *testing.T) {
	r := setupRouter(testScorer())

	tests := []struct {
		name        string
		body        string
		detailField string
	}{
		{"invalid passenger class", `{"Pclass": 5, "Sex": "male", "Age": 28}`, "Pclass"},
		{"invalid sex", `{"Pclass": 1, "Sex": "robot"}`, "Sex"},
		{"negative age", `{"Pclass": 1, "Sex": "male", "Age": -4}`, "Age"},
		{"malformed json", `{"Pclass": `, ""},
		{"empty array", `[]`, ""},
		{"one bad record poisons the batch", `[{"Pclass": 1, "Sex": "male"}, {"Pclass": 9, "Sex": "male"}]`, "Pclass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, r, "/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp struct {
				Category string            `json:"category"`
				Message  string            `json:"message"`
				Details  map[string]string `json:"details"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "validation", resp.Category)
			assert.NotEmpty(t, resp.Message)
			if tt.detailField != "" {
				assert.Contains(t, resp.Details, tt.detailField)
				assert.NotEmpty(t, resp.Details[tt.detailField])
			}
		})
	}
}

func TestPredictNotReady(t *testing.T) {
	r := setupRouter(fingerprint.NewScorer(nil))

	w := postJSON(t, r, "/predict", `{"Pclass": 3, "Sex": "male", "Age": 28}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp["category"])
	assert.Equal(t, "Survival model not ready: asset bundle not loaded", resp["message"])
	assert.Equal(t, "MODEL_NOT_READY", resp["code"])
}

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCount int
		wantErr   bool
	}{
		{"single object", `{"Pclass": 1}`, 1, false},
		{"array", `[{"Pclass": 1}, {"Pclass": 2}]`, 2, false},
		{"array with leading whitespace", "\n  [{}]", 1, false},
		{"empty body", ``, 0, true},
		{"malformed object", `{`, 0, true},
		{"malformed array element", `[{"Pclass": "first"}]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := decodeRecords(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.wantCount)
		})
	}
}
