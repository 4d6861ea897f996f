package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the Notion REST API root.
	DefaultBaseURL = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// Client wraps the handful of Notion primitives the bot needs: create page,
// query database, get page/blocks, patch page, append block children.
//
// Consistency contract: QueryDatabase is eventually consistent — a page
// created immediately before a query may not yet appear in its results.
// GetPage and GetBlockChildren are strongly consistent. Callers that know a
// page id should always prefer the get-by-id path.
type Client struct {
	BaseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Notion API client.
func New(token string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-success response from the Notion API. The remote error
// body is preserved so callers can surface it to the user.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("notion: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("notion: request failed (status %d)", e.StatusCode)
}

// Page is a raw Notion page object.
type Page map[string]interface{}

// Block is a raw Notion block object.
type Block map[string]interface{}

func (c *Client) request(ctx context.Context, method, endpoint string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil && resp.StatusCode < 400 {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if msg, ok := result["message"].(string); ok {
			apiErr.Message = msg
		}
		return nil, apiErr
	}

	return result, nil
}

// CreatePage creates a page in the given database. children and iconEmoji
// are optional. Returns the created page id.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}, children []Block, iconEmoji string) (string, error) {
	body := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": properties,
	}
	if len(children) > 0 {
		body["children"] = children
	}
	if iconEmoji != "" {
		body["icon"] = map[string]interface{}{"type": "emoji", "emoji": iconEmoji}
	}

	result, err := c.request(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return "", err
	}
	id, _ := result["id"].(string)
	if id == "" {
		return "", fmt.Errorf("notion: create page response missing id")
	}
	return id, nil
}

// QueryDatabase runs a filtered, sorted query against a database.
// Eventually consistent: freshly created pages may be missing.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter map[string]interface{}, sorts []map[string]interface{}, pageSize int) ([]Page, error) {
	body := map[string]interface{}{}
	if filter != nil {
		body["filter"] = filter
	}
	if len(sorts) > 0 {
		body["sorts"] = sorts
	}
	if pageSize > 0 {
		body["page_size"] = pageSize
	}

	result, err := c.request(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body)
	if err != nil {
		return nil, err
	}

	raw, _ := result["results"].([]interface{})
	pages := make([]Page, 0, len(raw))
	for _, r := range raw {
		if page, ok := r.(map[string]interface{}); ok {
			pages = append(pages, Page(page))
		}
	}
	return pages, nil
}

// SortNewestFirst orders query results by creation time, most recent first.
func SortNewestFirst() []map[string]interface{} {
	return []map[string]interface{}{
		{"timestamp": "created_time", "direction": "descending"},
	}
}

// GetPage fetches a single page by id. Strongly consistent.
func (c *Client) GetPage(ctx context.Context, pageID string) (Page, error) {
	result, err := c.request(ctx, http.MethodGet, "/pages/"+pageID, nil)
	if err != nil {
		return nil, err
	}
	return Page(result), nil
}

// GetBlockChildren fetches the child blocks of a page or block by id.
// Strongly consistent.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	result, err := c.request(ctx, http.MethodGet, "/blocks/"+blockID+"/children", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := result["results"].([]interface{})
	blocks := make([]Block, 0, len(raw))
	for _, r := range raw {
		if block, ok := r.(map[string]interface{}); ok {
			blocks = append(blocks, Block(block))
		}
	}
	return blocks, nil
}

// ArchivePage soft-deletes a page. Notion never hard-deletes through the API.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	_, err := c.request(ctx, http.MethodPatch, "/pages/"+pageID, map[string]interface{}{
		"archived": true,
	})
	return err
}

// UpdatePageProperties patches the given properties on a page.
func (c *Client) UpdatePageProperties(ctx context.Context, pageID string, properties map[string]interface{}) error {
	_, err := c.request(ctx, http.MethodPatch, "/pages/"+pageID, map[string]interface{}{
		"properties": properties,
	})
	return err
}

// AppendBlockChildren appends blocks to the end of a page or block.
func (c *Client) AppendBlockChildren(ctx context.Context, blockID string, children []Block) error {
	_, err := c.request(ctx, http.MethodPatch, "/blocks/"+blockID+"/children", map[string]interface{}{
		"children": children,
	})
	return err
}

// UpdateBlock overwrites a block's content in place.
func (c *Client) UpdateBlock(ctx context.Context, blockID string, block map[string]interface{}) error {
	_, err := c.request(ctx, http.MethodPatch, "/blocks/"+blockID, block)
	return err
}

// DeleteBlock removes a single block from its page.
func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	_, err := c.request(ctx, http.MethodDelete, "/blocks/"+blockID, nil)
	return err
}
