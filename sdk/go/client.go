package growitsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal GrowIt HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User mirrors the API user model.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// Token is a login response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// StudyStats mirrors the study stats model.
type StudyStats struct {
	UserID            int64  `json:"user_id"`
	LastStudyDate     string `json:"last_study_date,omitempty"`
	CurrentStreak     int    `json:"current_streak"`
	TodayStudyMinutes int    `json:"today_study_minutes"`
	TotalStudyMinutes int    `json:"total_study_minutes"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SendEvent posts an analytics event and returns its assigned id.
func (c *Client) SendEvent(ctx context.Context, eventType, userID, anonymousID string, metadata map[string]any) (string, error) {
	body := map[string]any{
		"event_type": eventType,
		"metadata":   metadata,
	}
	if userID != "" {
		body["user_id"] = userID
	}
	if anonymousID != "" {
		body["anonymous_id"] = anonymousID
	}
	var resp struct {
		EventID string `json:"event_id"`
	}
	err := c.do(ctx, http.MethodPost, "api/events", body, &resp)
	return resp.EventID, err
}

// Signup creates an account.
func (c *Client) Signup(ctx context.Context, email, password string) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "api/auth/signup", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	return resp, err
}

// Login exchanges form-encoded credentials for a bearer token and stores
// it on the client for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/api/auth/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var tok Token
	if err := c.send(req, &tok); err != nil {
		return Token{}, err
	}
	c.BearerToken = tok.AccessToken
	return tok, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "api/users/me", nil, &resp)
	return resp, err
}

// StudyStats returns the authenticated user's study stats.
func (c *Client) StudyStats(ctx context.Context) (StudyStats, error) {
	var resp StudyStats
	err := c.do(ctx, http.MethodGet, "api/study/stats", nil, &resp)
	return resp, err
}

// UpdateStudyProgress reports study minutes for today.
func (c *Client) UpdateStudyProgress(ctx context.Context, minutes int) (StudyStats, error) {
	var resp StudyStats
	err := c.do(ctx, http.MethodPost, "api/study/progress", map[string]any{
		"study_minutes": minutes,
	}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+"/"+strings.TrimLeft(endpoint, "/"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.BearerToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
