// Package mygenetics is an HTTP client for the MyGenetics API. Each bot user
// gets an independent cookie session.
package mygenetics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/suPer8Hu/nutribot/internal/logging"
)

const DefaultBaseURL = "https://mygenetics.ru/api/v2"

var ErrNotAuthenticated = errors.New("mygenetics: session is not authenticated")

type Client struct {
	baseURL string
	timeout time.Duration
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*userSession
}

type userSession struct {
	http          *http.Client
	authenticated bool
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  timeout,
		log:      logging.OrNop(log),
		sessions: make(map[int64]*userSession),
	}
}

func (c *Client) session(userID int64) *userSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		s = c.newSession()
		c.sessions[userID] = s
	}
	return s
}

func (c *Client) newSession() *userSession {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &userSession{http: &http.Client{Jar: jar, Timeout: c.timeout}}
}

func (c *Client) setAuthenticated(userID int64, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[userID]; ok {
		s.authenticated = v
	}
}

func (c *Client) isAuthenticated(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	return ok && s.authenticated
}

type loginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResp struct {
	Code string `json:"code"`
}

// Authenticate returns false with a nil error when the API rejects the credentials.
func (c *Client) Authenticate(ctx context.Context, userID int64, login, password string) (bool, error) {
	s := c.session(userID)

	b, err := json.Marshal(loginReq{Login: login, Password: password})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(b))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("mygenetics login: %w", err)
	}
	defer resp.Body.Close()

	var decoded loginResp
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&decoded)
	}
	ok := resp.StatusCode == http.StatusOK && decoded.Code == "success"
	c.setAuthenticated(userID, ok)
	if !ok {
		c.log.Warn("mygenetics login rejected", zap.Int64("user_id", userID), zap.Int("status", resp.StatusCode))
		return false, nil
	}
	c.log.Info("mygenetics login ok", zap.Int64("user_id", userID))
	return true, nil
}

func (c *Client) RenewToken(ctx context.Context, userID int64) (bool, error) {
	if !c.isAuthenticated(userID) {
		return false, nil
	}
	resp, err := c.get(ctx, userID, "/auth/renew")
	if err != nil {
		c.setAuthenticated(userID, false)
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setAuthenticated(userID, false)
		return false, nil
	}
	return true, nil
}

// CodelabData returns nil data with a nil error when the code is unknown.
func (c *Client) CodelabData(ctx context.Context, userID int64, code string) (map[string]any, error) {
	if !c.isAuthenticated(userID) {
		return nil, ErrNotAuthenticated
	}
	resp, err := c.get(ctx, userID, "/codelabs/"+url.PathEscape(code))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		c.setAuthenticated(userID, false)
		return nil, ErrNotAuthenticated
	default:
		c.log.Warn("mygenetics codelab lookup failed", zap.Int64("user_id", userID), zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("mygenetics codelab decode: %w", err)
	}
	return data, nil
}

// Logout drops the user's cookie session whatever the API answers.
func (c *Client) Logout(ctx context.Context, userID int64) (bool, error) {
	if !c.isAuthenticated(userID) {
		c.forget(userID)
		return true, nil
	}
	resp, err := c.get(ctx, userID, "/auth/logout")
	c.forget(userID)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (c *Client) forget(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, userID)
}

func (c *Client) get(ctx context.Context, userID int64, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.session(userID).http.Do(req)
}
