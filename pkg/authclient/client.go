// Package authclient calls the session-auth HTTP API from other Go services.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultCookieName = "refreshToken"

type Client struct {
	baseURL    string
	cookieName string
	httpClient *http.Client
}

// StatusError is returned for any non-200 response. Message is the
// server's reason string when it sent one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth: status %d", e.Code)
	}
	return fmt.Sprintf("auth: status %d: %s", e.Code, e.Message)
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(authServiceURL, "/"),
		cookieName: DefaultCookieName,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithCookieName matches a server configured with a non-default REFRESH_COOKIE_NAME.
func (c *Client) WithCookieName(name string) *Client {
	cp := *c
	cp.cookieName = name
	return &cp
}

// WithHTTPClient swaps the underlying client, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	cp := *c
	cp.httpClient = hc
	return &cp
}

type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

type Session struct {
	AccessToken   string
	RefreshSecret string
	User          User
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var res loginResponse
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", bytes.NewReader(body), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/json")
	}, &res)
	if err != nil {
		return nil, err
	}

	s := &Session{AccessToken: res.AccessToken, User: res.User}
	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName {
			s.RefreshSecret = ck.Value
		}
	}
	if s.RefreshSecret == "" {
		return nil, fmt.Errorf("login response has no %s cookie", c.cookieName)
	}
	return s, nil
}

func (c *Client) Refresh(ctx context.Context, refreshSecret string) (string, error) {
	var res refreshResponse
	if _, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, c.withRefresh(refreshSecret), &res); err != nil {
		return "", err
	}
	return res.AccessToken, nil
}

func (c *Client) Logout(ctx context.Context, refreshSecret string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, c.withRefresh(refreshSecret), nil)
	return err
}

func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var u User
	_, err := c.do(ctx, http.MethodGet, "/auth/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+accessToken)
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) withRefresh(secret string) func(*http.Request) {
	return func(r *http.Request) {
		if secret != "" {
			r.AddCookie(&http.Cookie{Name: c.cookieName, Value: secret})
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, prepare func(*http.Request), out any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if prepare != nil {
		prepare(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var msg errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return nil, &StatusError{Code: resp.StatusCode, Message: msg.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}
