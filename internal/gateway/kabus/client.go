// Package kabus is the REST client for the Kabu Station API. Token
// acquisition and re-auth are transparent to callers: every request carries
// the current token and a 401 triggers one token refresh and one retry.
package kabus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu            sync.Mutex
	apiPassword   string
	orderPassword string
	token         string
}

func NewClient(baseURL, apiPassword, orderPassword string) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("kabus base url cannot be empty")
	}
	if _, err := url.Parse(raw); err != nil {
		return nil, fmt.Errorf("parsing kabus base url failed: %w", err)
	}
	return &Client{
		baseURL:       raw,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		apiPassword:   apiPassword,
		orderPassword: orderPassword,
	}, nil
}

// SetHTTPClient overrides the HTTP client, for tests.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// Configured reports whether both secrets are present.
func (c *Client) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiPassword != "" && c.orderPassword != ""
}

// SetCredentials replaces one or both passwords and drops the cached token
// so the next request re-authenticates.
func (c *Client) SetCredentials(apiPassword, orderPassword *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if apiPassword != nil {
		c.apiPassword = *apiPassword
	}
	if orderPassword != nil {
		c.orderPassword = *orderPassword
	}
	c.token = ""
}

// ResetToken drops the cached token.
func (c *Client) ResetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	apiPassword := c.apiPassword
	c.mu.Unlock()

	if apiPassword == "" {
		return "", fmt.Errorf("kabus api password not configured")
	}
	body, _ := json.Marshal(map[string]string{"APIPassword": apiPassword})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("kabus token request failed: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("kabus token request failed: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	token := gjson.GetBytes(data, "Token").String()
	if token == "" {
		return "", fmt.Errorf("kabus token response carried no token")
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// doRequest performs one authenticated call, refreshing the token once on a
// 401, and returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	body, status, err := c.doOnce(ctx, method, path, params, payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.ResetToken()
		body, status, err = c.doOnce(ctx, method, path, params, payload)
		if err != nil {
			return nil, err
		}
	}
	if status >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, fmt.Errorf("kabus %s %s failed: status=%d %s", method, path, status, msg)
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, int, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, 0, err
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-KEY", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("kabus %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}
