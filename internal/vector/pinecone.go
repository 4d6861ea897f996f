package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Index is a client for one Pinecone serverless index, addressed by its
// host URL.
type Index struct {
	Host       string
	apiKey     string
	httpClient *http.Client
}

// NewIndex creates a Pinecone index client.
func NewIndex(apiKey, host string) *Index {
	return &Index{
		Host:   host,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (i *Index) post(ctx context.Context, endpoint string, payload interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.Host+endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", i.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("pinecone API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("failed to parse pinecone response: %w", err)
		}
	}
	return result, nil
}

// Upsert stores a vector under the given id, overwriting any existing one.
func (i *Index) Upsert(ctx context.Context, id string, values []float64) error {
	_, err := i.post(ctx, "/vectors/upsert", map[string]interface{}{
		"vectors": []map[string]interface{}{
			{"id": id, "values": values},
		},
	})
	return err
}

// Query returns the ids of the topK nearest vectors.
func (i *Index) Query(ctx context.Context, values []float64, topK int) ([]string, error) {
	result, err := i.post(ctx, "/query", map[string]interface{}{
		"vector": values,
		"topK":   topK,
	})
	if err != nil {
		return nil, err
	}

	raw, _ := result["matches"].([]interface{})
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		match, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		if id, _ := match["id"].(string); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
