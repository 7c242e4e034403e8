package fingerprint

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/semiprime/survival-matrix/internal/types"
)

// TrainingDataError marks a batch-training input problem: missing required
// columns, too few rows, or an unparseable cell. The trainer aborts before
// any asset file is written.
type TrainingDataError struct {
	Reason string
}

func (e *TrainingDataError) Error() string {
	return "training data error: " + e.Reason
}

// requiredColumns must be present in the training CSV header.
var requiredColumns = []string{"Survived", "Pclass", "Sex"}

// LoadCSV reads a Titanic-layout CSV into passenger records. Column order is
// free; matching is by header name, case-insensitive. Empty cells become
// absent fields for the preprocessor to impute.
func LoadCSV(path string) ([]types.PassengerRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &TrainingDataError{Reason: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &TrainingDataError{Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}
	if len(rows) < 2 {
		return nil, &TrainingDataError{Reason: "CSV has no data rows"}
	}

	header := map[string]int{}
	for i, name := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := header[strings.ToLower(col)]; !ok {
			return nil, &TrainingDataError{Reason: fmt.Sprintf("missing required column %s", col)}
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := header[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	records := make([]types.PassengerRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := types.PassengerRecord{
			Name:     cell(row, "name"),
			Sex:      cell(row, "sex"),
			Cabin:    cell(row, "cabin"),
			Embarked: cell(row, "embarked"),
		}

		if v := cell(row, "passengerid"); v != "" {
			id, err := strconv.Atoi(v)
			if err != nil {
				return nil, &TrainingDataError{Reason: fmt.Sprintf("row %d: PassengerId is not an integer: %q", n+2, v)}
			}
			rec.PassengerID = &id
		}
		if v := cell(row, "survived"); v != "" {
			s, err := strconv.Atoi(v)
			if err != nil || (s != 0 && s != 1) {
				return nil, &TrainingDataError{Reason: fmt.Sprintf("row %d: Survived must be 0 or 1, got %q", n+2, v)}
			}
			rec.Survived = &s
		}
		if v := cell(row, "pclass"); v != "" {
			c, err := strconv.Atoi(v)
			if err != nil {
				return nil, &TrainingDataError{Reason: fmt.Sprintf("row %d: Pclass is not an integer: %q", n+2, v)}
			}
			rec.Pclass = &c
		}
		for _, fc := range []struct {
			name string
			dst  **float64
		}{
			{"age", &rec.Age},
			{"sibsp", &rec.SibSp},
			{"parch", &rec.Parch},
			{"fare", &rec.Fare},
		} {
			if v := cell(row, fc.name); v != "" {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, &TrainingDataError{Reason: fmt.Sprintf("row %d: %s is not numeric: %q", n+2, fc.name, v)}
				}
				*fc.dst = &f
			}
		}

		records = append(records, rec)
	}

	return records, nil
}
