package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTranscriberBaseURL is the AssemblyAI API root.
const DefaultTranscriberBaseURL = "https://api.assemblyai.com/v2"

// Transcriber converts voice messages to text via AssemblyAI: upload the
// audio, submit a transcription job, poll until it settles.
type Transcriber struct {
	BaseURL    string
	apiKey     string
	httpClient *http.Client

	// PollInterval and MaxPolls bound the polling loop; a job still
	// processing after MaxPolls polls is treated as a failure.
	PollInterval time.Duration
	MaxPolls     int
}

// NewTranscriber creates an AssemblyAI client.
func NewTranscriber(apiKey string) *Transcriber {
	return &Transcriber{
		BaseURL: DefaultTranscriberBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		PollInterval: 2 * time.Second,
		MaxPolls:     60,
	}
}

func (t *Transcriber) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", t.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse transcription response: %w", err)
	}
	return result, nil
}

// Transcribe uploads audio bytes and returns the transcript text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	uploaded, err := t.do(ctx, http.MethodPost, "/upload", "application/octet-stream", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("audio upload failed: %w", err)
	}
	uploadURL, _ := uploaded["upload_url"].(string)
	if uploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}

	jobBody, _ := json.Marshal(map[string]interface{}{
		"audio_url":          uploadURL,
		"language_detection": true,
	})
	job, err := t.do(ctx, http.MethodPost, "/transcript", "application/json", bytes.NewBuffer(jobBody))
	if err != nil {
		return "", fmt.Errorf("failed to submit transcription job: %w", err)
	}
	jobID, _ := job["id"].(string)
	if jobID == "" {
		return "", fmt.Errorf("transcription job response missing id")
	}

	for i := 0; i < t.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.PollInterval):
		}

		status, err := t.do(ctx, http.MethodGet, "/transcript/"+jobID, "", nil)
		if err != nil {
			return "", err
		}

		switch status["status"] {
		case "completed":
			text, _ := status["text"].(string)
			if text == "" {
				return "", fmt.Errorf("transcription produced no text")
			}
			return text, nil
		case "error":
			msg, _ := status["error"].(string)
			return "", fmt.Errorf("transcription failed: %s", msg)
		}
	}
	return "", fmt.Errorf("transcription timed out after %d polls", t.MaxPolls)
}
