package types

import "time"

// PassengerRecord is a sparse inbound passenger description. Every field is
// optional on the wire; pointer fields distinguish "absent" from zero values
// so the preprocessor can impute instead of misreading a missing age as 0.
type PassengerRecord struct {
	PassengerID *int     `json:"PassengerId,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Pclass      *int     `json:"Pclass,omitempty"`
	Sex         string   `json:"Sex,omitempty"`
	Age         *float64 `json:"Age,omitempty"`
	SibSp       *float64 `json:"SibSp,omitempty"`
	Parch       *float64 `json:"Parch,omitempty"`
	Fare        *float64 `json:"Fare,omitempty"`
	Cabin       string   `json:"Cabin,omitempty"`
	Embarked    string   `json:"Embarked,omitempty"`

	// Survived is only meaningful for evaluation requests; when present the
	// response carries the signed outlier score against the prediction.
	Survived *int `json:"Survived,omitempty"`
}

// PassengerResult is the per-record scoring response.
type PassengerResult struct {
	InputIndex    int     `json:"input_index"`
	PassengerName string  `json:"passenger_name,omitempty"`
	AN            float64 `json:"A_N"`
	MN            float64 `json:"M_N"`
	PhiN          float64 `json:"Phi_N"`
	Probability   float64 `json:"predicted_survival_probability"`
	Label         int     `json:"predicted_label"`

	ObservedSurvived *int     `json:"observed_survived,omitempty"`
	OutlierScore     *float64 `json:"outlier_score,omitempty"`
}

// PredictResponse is the envelope for one or many scored records.
type PredictResponse struct {
	N       int               `json:"n"`
	Results []PassengerResult `json:"results"`
}

// SubmissionRequest asks the backend to score a set of records and push the
// resulting prediction file to Kaggle.
type SubmissionRequest struct {
	Competition string            `json:"competition" binding:"required"`
	Message     string            `json:"message,omitempty"`
	Records     []PassengerRecord `json:"records" binding:"required"`
}

// SubmissionStatus is the single-writer lifecycle field of a submission.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is the persisted record of one submission attempt.
type Submission struct {
	ID          string           `json:"id"`
	Competition string           `json:"competition"`
	Message     string           `json:"message,omitempty"`
	Status      SubmissionStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
