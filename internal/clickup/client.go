package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"memobot/internal/models"
)

// DefaultBaseURL is the ClickUp REST API root.
const DefaultBaseURL = "https://api.clickup.com/api/v2"

// Client fetches the user's open tasks from ClickUp.
type Client struct {
	BaseURL    string
	token      string
	teamID     string
	userID     string
	httpClient *http.Client
}

// New creates a ClickUp client scoped to one team and one assignee.
func New(token, teamID, userID string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		token:   token,
		teamID:  teamID,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, endpoint string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clickup request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clickup API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse clickup response: %w", err)
	}
	return result, nil
}

// ListMyTasks returns the user's open tasks across the team.
func (c *Client) ListMyTasks(ctx context.Context) ([]models.Task, error) {
	query := url.Values{}
	query.Set("subtasks", "true")
	query.Add("assignees[]", c.userID)

	result, err := c.get(ctx, "/team/"+c.teamID+"/task?"+query.Encode())
	if err != nil {
		return nil, err
	}

	raw, _ := result["tasks"].([]interface{})
	tasks := make([]models.Task, 0, len(raw))
	for _, r := range raw {
		item, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		tasks = append(tasks, parseTask(item))
	}
	return tasks, nil
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	result, err := c.get(ctx, "/task/"+url.PathEscape(taskID))
	if err != nil {
		return nil, err
	}
	task := parseTask(result)
	return &task, nil
}

func parseTask(item map[string]interface{}) models.Task {
	task := models.Task{}
	task.ID, _ = item["id"].(string)
	task.Name, _ = item["name"].(string)
	task.URL, _ = item["url"].(string)

	if status, ok := item["status"].(map[string]interface{}); ok {
		task.Status, _ = status["status"].(string)
	}
	if priority, ok := item["priority"].(map[string]interface{}); ok {
		task.Priority, _ = priority["priority"].(string)
	}

	// Due dates arrive as millisecond timestamps in strings.
	if due, ok := item["due_date"].(string); ok && due != "" {
		if millis, err := strconv.ParseInt(due, 10, 64); err == nil {
			t := time.UnixMilli(millis)
			task.DueDate = &t
		}
	}

	if rawTags, ok := item["tags"].([]interface{}); ok {
		for _, rt := range rawTags {
			if tag, ok := rt.(map[string]interface{}); ok {
				if name, _ := tag["name"].(string); name != "" {
					task.Tags = append(task.Tags, name)
				}
			}
		}
	}
	return task
}
