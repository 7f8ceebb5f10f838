package client

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
	"sync"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session *Session
	token   string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Session returns a copy of the current session, nil when logged out.
func (c *HTTPClient) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Logout forgets the session and its token.
func (c *HTTPClient) Logout() {
	c.mu.Lock()
	c.session = nil
	c.token = ""
	c.mu.Unlock()
}

func (c *HTTPClient) credentials() (*Session, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, "", ErrNotLoggedIn
	}
	s := *c.session
	return &s, c.token, nil
}

func (c *HTTPClient) Signup(ctx context.Context, username, email, password string) error {
	var r reply
	return c.do(ctx, http.MethodPost, "/api/signup", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &r)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var r reply
	err := c.do(ctx, http.MethodPost, "/api/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &r)
	if err != nil {
		return nil, err
	}
	if r.User == nil || r.CSRFToken == "" {
		return nil, fmt.Errorf("login: incomplete reply")
	}

	s := &Session{
		Username:  r.User.Username,
		Email:     r.User.Email,
		Role:      r.User.Role,
		LastLogin: r.User.LastLogin,
	}

	c.mu.Lock()
	c.session = s
	c.token = r.CSRFToken
	c.mu.Unlock()

	out := *s
	return &out, nil
}

// ChangePassword ends the session on success since the server revokes every
// token of the account.
func (c *HTTPClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	s, token, err := c.credentials()
	if err != nil {
		return err
	}

	var r reply
	err = c.do(ctx, http.MethodPost, "/api/change-password", token, map[string]string{
		"email":       s.Email,
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	}, &r)
	if err != nil {
		return err
	}

	c.Logout()
	return nil
}

func (c *HTTPClient) ListNotes(ctx context.Context) ([]Note, error) {
	s, token, err := c.credentials()
	if err != nil {
		return nil, err
	}
	var notes []Note
	err = c.do(ctx, http.MethodGet, "/api/notes?"+identityQuery(s), token, nil, &notes)
	return notes, err
}

func (c *HTTPClient) SearchNotes(ctx context.Context, query string) ([]Note, error) {
	s, token, err := c.credentials()
	if err != nil {
		return nil, err
	}
	var notes []Note
	path := "/api/notes/search/" + url.PathEscape(query) + "?" + identityQuery(s)
	err = c.do(ctx, http.MethodGet, path, token, nil, &notes)
	return notes, err
}

func (c *HTTPClient) GetNote(ctx context.Context, id int64) (*Note, error) {
	s, token, err := c.credentials()
	if err != nil {
		return nil, err
	}
	var n Note
	if err := c.do(ctx, http.MethodGet, notePath(id)+"?"+identityQuery(s), token, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *HTTPClient) CreateNote(ctx context.Context, title, content string) (int64, error) {
	s, token, err := c.credentials()
	if err != nil {
		return 0, err
	}
	var r reply
	if err := c.do(ctx, http.MethodPost, "/api/notes", token, noteBody(s, title, content), &r); err != nil {
		return 0, err
	}
	return r.NoteID, nil
}

func (c *HTTPClient) UpdateNote(ctx context.Context, id int64, title, content string) error {
	s, token, err := c.credentials()
	if err != nil {
		return err
	}
	var r reply
	return c.do(ctx, http.MethodPut, notePath(id), token, noteBody(s, title, content), &r)
}

func (c *HTTPClient) DeleteNote(ctx context.Context, id int64) error {
	s, token, err := c.credentials()
	if err != nil {
		return err
	}
	var r reply
	return c.do(ctx, http.MethodDelete, notePath(id)+"?"+identityQuery(s), token, nil, &r)
}

func notePath(id int64) string {
	return "/api/notes/" + strconv.FormatInt(id, 10)
}

func identityQuery(s *Session) string {
	q := url.Values{}
	q.Set("role", s.Role)
	q.Set("email", s.Email)
	return q.Encode()
}

func noteBody(s *Session, title, content string) map[string]string {
	return map[string]string{
		"role":    s.Role,
		"email":   s.Email,
		"title":   title,
		"content": content,
	}
}

// do sends one request and decodes a successful reply into out. Error
// statuses and success:false envelopes become *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.CSRFHeaderName, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || isEnvelopeFailure(raw) {
		var r reply
		_ = json.Unmarshal(raw, &r)
		apiErr := newAPIError(resp.StatusCode, &r)
		if apiErr.SessionExpired || apiErr.CSRFError {
			c.Logout()
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func isEnvelopeFailure(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var r struct {
		Success *bool `json:"success"`
	}
	if json.Unmarshal(trimmed, &r) != nil {
		return false
	}
	return r.Success != nil && !*r.Success
}
