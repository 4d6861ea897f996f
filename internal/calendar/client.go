package calendar

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"memobot/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultBaseURL is the Google Calendar REST API root.
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

	// DefaultTokenURL is the OAuth2 token exchange endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	scope = "https://www.googleapis.com/auth/calendar"
)

// Client talks to Google Calendar using a service account. The service
// account is authorized via a signed JWT assertion exchanged for a short
// lived access token; the token is cached until shortly before expiry.
type Client struct {
	BaseURL     string
	TokenURL    string
	calendarID  string
	timezone    string
	clientEmail string
	privateKey  *rsa.PrivateKey
	httpClient  *http.Client

	tokenMux    sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// New creates a calendar client from a service account key JSON blob.
func New(credentialsJSON, calendarID, timezone string) (*Client, error) {
	var key serviceAccountKey
	if err := json.Unmarshal([]byte(credentialsJSON), &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account credentials missing client_email or private_key")
	}

	block, _ := pem.Decode([]byte(key.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("service account private key is not PEM encoded")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("service account private key is not RSA")
	}

	return &Client{
		BaseURL:     DefaultBaseURL,
		TokenURL:    DefaultTokenURL,
		calendarID:  calendarID,
		timezone:    timezone,
		clientEmail: key.ClientEmail,
		privateKey:  rsaKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// CalendarID returns the calendar this client writes to.
func (c *Client) CalendarID() string {
	return c.calendarID
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMux.Lock()
	defer c.tokenMux.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.clientEmail,
		"scope": scope,
		"aud":   c.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = tokenResp.AccessToken
	// Renew a minute early.
	c.tokenExpiry = now.Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *Client) request(ctx context.Context, method, endpoint string, body interface{}) (map[string]interface{}, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

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
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &apiError{status: resp.StatusCode, body: string(respBody)}
	}
	if len(respBody) == 0 {
		return nil, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse calendar response: %w", err)
	}
	return result, nil
}

// apiError is a non-2xx calendar API response.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("calendar API returned status %d: %s", e.status, e.body)
}

// CreateEvent creates a one hour event starting at start, with a popup
// reminder reminderMinutes before it (0 disables the reminder). The
// description links the event back to its source note. Returns the created
// event id.
func (c *Client) CreateEvent(ctx context.Context, title, description string, start time.Time, reminderMinutes int) (string, error) {
	end := start.Add(time.Hour)

	reminders := map[string]interface{}{"useDefault": false}
	if reminderMinutes > 0 {
		reminders["overrides"] = []map[string]interface{}{
			{"method": "popup", "minutes": reminderMinutes},
		}
	}

	body := map[string]interface{}{
		"summary": title,
		"start": map[string]interface{}{
			"dateTime": start.Format(time.RFC3339),
			"timeZone": c.timezone,
		},
		"end": map[string]interface{}{
			"dateTime": end.Format(time.RFC3339),
			"timeZone": c.timezone,
		},
		"reminders": reminders,
	}
	if description != "" {
		body["description"] = description
	}

	result, err := c.request(ctx, http.MethodPost, "/calendars/"+url.PathEscape(c.calendarID)+"/events", body)
	if err != nil {
		return "", err
	}
	id, _ := result["id"].(string)
	if id == "" {
		return "", fmt.Errorf("calendar: create event response missing id")
	}
	return id, nil
}

// DeleteEvent removes an event. The calendar id is explicit so undo can
// delete events created under an earlier configuration. An event already
// deleted out of band counts as success.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if calendarID == "" {
		calendarID = c.calendarID
	}
	_, err := c.request(ctx, http.MethodDelete,
		"/calendars/"+url.PathEscape(calendarID)+"/events/"+url.PathEscape(eventID), nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && (apiErr.status == http.StatusNotFound || apiErr.status == http.StatusGone) {
		return nil
	}
	return err
}

// ListEvents returns events starting within [from, to), ordered by start time.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]models.CalendarEvent, error) {
	query := url.Values{}
	query.Set("timeMin", from.Format(time.RFC3339))
	query.Set("timeMax", to.Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	result, err := c.request(ctx, http.MethodGet,
		"/calendars/"+url.PathEscape(c.calendarID)+"/events?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	raw, _ := result["items"].([]interface{})
	events := make([]models.CalendarEvent, 0, len(raw))
	for _, r := range raw {
		item, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		event := models.CalendarEvent{}
		event.ID, _ = item["id"].(string)
		event.Title, _ = item["summary"].(string)
		event.HTMLLink, _ = item["htmlLink"].(string)

		if start, ok := item["start"].(map[string]interface{}); ok {
			if dateTime, ok := start["dateTime"].(string); ok {
				event.Start, _ = time.Parse(time.RFC3339, dateTime)
			} else if date, ok := start["date"].(string); ok {
				event.Start, _ = time.Parse("2006-01-02", date)
				event.AllDay = true
			}
		}
		events = append(events, event)
	}
	return events, nil
}
