package metricwire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"studykit/internal/errors"

	"github.com/tidwall/gjson"
)

// errUnauthorized marks a 401 so the caller refreshes its token.
var errUnauthorized = fmt.Errorf("unauthorized")

// Client talks to the MetricWire consumer API
type Client struct {
	config      *Config
	httpClient  *http.Client
	rateLimiter *RateLimiter

	mu    sync.Mutex
	token string
}

// NewClient creates a client; the token is fetched on first use
func NewClient(cfg *Config) *Client {
	return &Client{
		config:      cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.Window),
	}
}

// Survey is one entry of a study's survey list
type Survey struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	InternalName string `json:"internalName"`
}

// DisplayName prefers the internal name used by the study team
func (s Survey) DisplayName() string {
	if s.InternalName != "" {
		return s.InternalName
	}
	return s.Name
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	base := c.config.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.Join(escaped, "/")
}

// Token exchanges the client credentials for a bearer token
func (c *Client) Token(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.config.ClientID,
		"client_secret": c.config.ClientSecret,
	})
	if err != nil {
		return "", err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("oauth", "token"), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.ExternalServiceError("metricwire", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.ExternalServiceError("metricwire", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Unauthorized(fmt.Sprintf("token fetch failed with status %d", resp.StatusCode))
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", errors.ExternalServiceError("metricwire", fmt.Errorf("token response has no access_token"))
	}
	return token, nil
}

func (c *Client) currentToken(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !refresh {
		return c.token, nil
	}
	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// do sends one request with rate limiting, retries and token refresh.
// form, when non-nil, is sent as a urlencoded POST body.
func (c *Client) do(ctx context.Context, name, method, endpoint string, form url.Values) ([]byte, error) {
	refresh := false
	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		token, err := c.currentToken(ctx, refresh)
		if err != nil {
			return nil, err
		}
		refresh = false

		body, err := c.send(ctx, method, endpoint, token, form)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if err == errUnauthorized {
			refresh = true
		}
		log.Printf("[MetricWire] %s attempt %d/%d failed: %v", name, attempt, c.config.MaxAttempts, err)

		if attempt < c.config.MaxAttempts {
			timer := time.NewTimer(c.config.Backoff * time.Duration(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}
	return nil, errors.ExternalServiceError("metricwire", fmt.Errorf("%s failed after %d attempts: %w", name, c.config.MaxAttempts, lastErr))
}

func (c *Client) send(ctx context.Context, method, endpoint, token string, form url.Values) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Study returns the raw study document and its surveys
func (c *Client) Study(ctx context.Context, workspaceID, studyID string) ([]byte, []Survey, error) {
	body, err := c.do(ctx, "study", http.MethodGet, c.endpoint("studies", workspaceID, studyID), nil)
	if err != nil {
		return nil, nil, err
	}
	surveys := gjson.GetBytes(body, "surveys")
	if !surveys.IsArray() {
		return nil, nil, errors.ExternalServiceError("metricwire", fmt.Errorf("study response has no surveys array"))
	}
	var out []Survey
	surveys.ForEach(func(_, s gjson.Result) bool {
		out = append(out, Survey{
			ID:           s.Get("id").String(),
			Name:         s.Get("name").String(),
			InternalName: s.Get("internalName").String(),
		})
		return true
	})
	return body, out, nil
}

// SurveyDetails returns the raw survey definition
func (c *Client) SurveyDetails(ctx context.Context, workspaceID, studyID, surveyID string) ([]byte, error) {
	return c.do(ctx, "survey details", http.MethodGet, c.endpoint("surveys", workspaceID, studyID, surveyID), nil)
}

// SubmissionCount returns how many submissions a survey has
func (c *Client) SubmissionCount(ctx context.Context, workspaceID, studyID, surveyID string) (int, error) {
	body, err := c.do(ctx, "submissions size", http.MethodGet, c.endpoint("submissions", "size", workspaceID, studyID, surveyID), nil)
	if err != nil {
		return 0, err
	}
	count := gjson.GetBytes(body, "count")
	if !count.Exists() {
		return 0, errors.ExternalServiceError("metricwire", fmt.Errorf("size response has no count"))
	}
	return int(count.Int()), nil
}

// Submissions returns one raw page of submissions, PII omitted
func (c *Client) Submissions(ctx context.Context, workspaceID, studyID, surveyID string, page int) ([]byte, error) {
	form := url.Values{"omitPII": {"true"}}
	return c.do(ctx, "submissions", http.MethodPost,
		c.endpoint("submissions", workspaceID, studyID, surveyID, fmt.Sprint(page)), form)
}
