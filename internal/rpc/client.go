// Package rpc is the JSON-RPC client for the chat server.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/discuss/internal/logging"
)

const defaultTimeout = 30 * time.Second

// ErrSessionExpired is returned when the server no longer recognizes the
// session cookie. Authenticate again to recover.
var ErrSessionExpired = errors.New("rpc: session expired")

const sessionExpiredName = "odoo.http.SessionExpiredException"

// Error is a fault returned by the server.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries the server exception details.
type ErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Debug   string `json:"debug,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil && e.Data.Message != "" {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match ErrSessionExpired.
func (e *Error) Is(target error) bool {
	return target == ErrSessionExpired && e.Data != nil && e.Data.Name == sessionExpiredName
}

// Options configures a Client.
type Options struct {
	// BaseURL is the server root, e.g. https://erp.example.com.
	BaseURL string
	// Timeout bounds each call. Defaults to 30s.
	Timeout time.Duration
	// HTTPClient overrides the transport. Its Jar is replaced when nil.
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client talks to the server over JSON-RPC 2.0. It keeps the session cookie
// between calls and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu      sync.RWMutex
	session Session
}

// Session is the authenticated user, as returned by Authenticate.
type Session struct {
	UID         int64          `json:"uid"`
	PartnerID   int64          `json:"partner_id"`
	Name        string         `json:"name"`
	Username    string         `json:"username"`
	Database    string         `json:"db"`
	UserContext map[string]any `json:"user_context"`
}

// New creates a client for the server at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("rpc: base url is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	logger := logging.Component("rpc")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Session returns the session established by Authenticate.
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// CookieJar returns the jar holding the session cookie, for sharing with
// the push feed.
func (c *Client) CookieJar() http.CookieJar {
	return c.httpClient.Jar
}

// Authenticate opens a session for login on database.
func (c *Client) Authenticate(ctx context.Context, database, login, password string) (Session, error) {
	params := map[string]any{
		"db":       database,
		"login":    login,
		"password": password,
	}
	c.logger.Debug().Fields(logging.RedactParams(params)).Msg("authenticating")
	var session Session
	if err := c.call(ctx, "/web/session/authenticate", params, &session); err != nil {
		return Session{}, fmt.Errorf("authenticate %s: %w", login, err)
	}
	if session.UID == 0 {
		return Session{}, fmt.Errorf("authenticate %s: invalid credentials", login)
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.logger.Info().
		Str("db", session.Database).
		Int64("uid", session.UID).
		Int64("partner_id", session.PartnerID).
		Msg("session opened")
	return session, nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  any    `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

type callKWParams struct {
	Model  string         `json:"model"`
	Method string         `json:"method"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// CallKW invokes method on model and decodes the result into out (which may
// be nil).
func (c *Client) CallKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	if _, ok := kwargs["context"]; !ok {
		if userContext := c.Session().UserContext; userContext != nil {
			kwargs["context"] = userContext
		}
	}
	path := fmt.Sprintf("/web/dataset/call_kw/%s/%s", model, method)
	params := callKWParams{Model: model, Method: method, Args: args, Kwargs: kwargs}
	if err := c.call(ctx, path, params, out); err != nil {
		return fmt.Errorf("%s.%s: %w", model, method, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, path string, params any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req := request{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      uuid.NewString(),
		Params:  params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("rpc transport failure")
		return fmt.Errorf("call server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		c.logger.Warn().
			Str("path", path).
			Int("code", decoded.Error.Code).
			Str("error", logging.Redact(decoded.Error.Error())).
			Msg("rpc fault")
		return decoded.Error
	}

	c.logger.Debug().
		Str("path", path).
		Str("id", req.ID).
		Dur("elapsed", time.Since(start)).
		Msg("rpc call")

	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
