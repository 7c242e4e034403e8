package submission

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

const kaggleBaseURL = "https://www.kaggle.com/api/v1"

// Submitter pushes a prediction file to a competition host.
type Submitter interface {
	Configured() bool
	Submit(ctx context.Context, competition, message string, predictions []byte) error
}

// KaggleClient submits prediction files through the Kaggle public API using
// the same KAGGLE_USERNAME / KAGGLE_KEY credentials the official CLI reads.
type KaggleClient struct {
	username string
	key      string
	baseURL  string
	client   *http.Client
}

// NewKaggleClient reads credentials from the environment. A client without
// credentials is still usable for Configured checks; Submit fails cleanly.
func NewKaggleClient() *KaggleClient {
	return &KaggleClient{
		username: os.Getenv("KAGGLE_USERNAME"),
		key:      os.Getenv("KAGGLE_KEY"),
		baseURL:  kaggleBaseURL,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether both credentials are present.
func (k *KaggleClient) Configured() bool {
	return k.username != "" && k.key != ""
}

// Submit uploads a CSV prediction file to the competition. No retries; a
// failed upload is reported as-is and the caller records the failure.
func (k *KaggleClient) Submit(ctx context.Context, competition, message string, predictions []byte) error {
	if !k.Configured() {
		return fmt.Errorf("kaggle credentials not configured: set KAGGLE_USERNAME and KAGGLE_KEY")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "submission.csv")
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := fw.Write(predictions); err != nil {
		return fmt.Errorf("failed to write prediction payload: %w", err)
	}
	if message != "" {
		if err := mw.WriteField("submissionDescription", message); err != nil {
			return fmt.Errorf("failed to write submission message: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload form: %w", err)
	}

	url := fmt.Sprintf("%s/competitions/submissions/submit/%s", k.baseURL, competition)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to build submission request: %w", err)
	}
	req.SetBasicAuth(k.username, k.key)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("kaggle rejected submission: status %d: %s", resp.StatusCode, string(snippet))
	}

	return nil
}
