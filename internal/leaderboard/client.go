package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/keyrace/internal/apperr"
	"github.com/verte-zerg/keyrace/internal/auth"
)

// Client talks to a keyrace server. It implements Store; Submit needs a token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Store = (*Client)(nil)

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// BaseURL returns the server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FeedURL returns the websocket address of the live score feed.
func (c *Client) FeedURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/ws/feed")
	if err != nil {
		return "", fmt.Errorf("failed to parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (auth.Session, error) {
	var out auth.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &out)
	return out, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (auth.Session, error) {
	var out auth.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &out)
	return out, err
}

// Me returns the identity behind the client's token.
func (c *Client) Me(ctx context.Context) (auth.Identity, error) {
	var out auth.Identity
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out, err
}

// Submit posts a score. The server attributes it to the token's user.
func (c *Client) Submit(ctx context.Context, score Score) (Entry, error) {
	var out Entry
	err := c.do(ctx, http.MethodPost, "/api/scores", score, &out)
	return out, err
}

// Top fetches a leaderboard listing.
func (c *Client) Top(ctx context.Context, q Query) ([]Entry, error) {
	params := url.Values{}
	if q.Mode != "" {
		params.Set("mode", string(q.Mode))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/api/leaderboard"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var out []Entry
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Code != "" {
			return &apperr.AppError{
				Code:    eb.Error.Code,
				Message: eb.Error.Message,
				Status:  resp.StatusCode,
				Fields:  eb.Error.Fields,
			}
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
