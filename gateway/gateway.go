// Package gateway wraps the backend's login, registration, and
// tenant-switch endpoints and normalizes their failures into the closed
// error taxonomy the login flow branches on.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/attachly/go-attach-client/session"
)

// Backend endpoint paths, relative to the API base URL. tenant/resolve
// lives in the tenants package but is listed here so the interceptor
// can recognize every endpoint whose 401 means "bad credentials" rather
// than "expired session".
const (
	PathLogin         = "/auth/login"
	PathRegister      = "/auth/register"
	PathSwitchTenant  = "/auth/switch-tenant"
	PathTenantResolve = "/tenant/resolve"
)

var authPaths = []string{PathLogin, PathRegister, PathSwitchTenant, PathTenantResolve}

// IsAuthPath reports whether path belongs to the authentication
// endpoints themselves.
func IsAuthPath(path string) bool {
	for _, p := range authPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// Client calls the backend auth endpoints. It deliberately uses a bare
// HTTP client rather than the intercepted one: auth calls must never
// trigger the interceptor's forced-logout handling.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets the logger for request outcomes.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a gateway client against the given API base URL
// (e.g. "https://api.example.com/api/v1").
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	TenantID *int   `json:"tenant_id,omitempty"`
}

type registerRequest struct {
	Email       string `json:"email"`
	ERPUsername string `json:"erp_username"`
	ERPPassword string `json:"erp_password_or_token"`
	TenantID    *int   `json:"tenant_id,omitempty"`
}

type switchTenantRequest struct {
	Email    string `json:"email"`
	TenantID int    `json:"tenant_id"`
}

// Login obtains a session for a pre-registered email without
// credentials. tenantID is required only when the email's domain maps
// to more than one tenant.
func (c *Client) Login(ctx context.Context, email string, tenantID *int) (session.Session, error) {
	return c.post(ctx, PathLogin, loginRequest{Email: email, TenantID: tenantID}, CodeNoStoredCredentials)
}

// Register validates the organization credential with the backend,
// establishing or updating the server-stored association, and returns a
// session. The backend treats it as an upsert, which is what makes it
// usable as the silent re-auth call.
func (c *Client) Register(ctx context.Context, email, username, secret string, tenantID *int) (session.Session, error) {
	return c.post(ctx, PathRegister, registerRequest{
		Email:       email,
		ERPUsername: username,
		ERPPassword: secret,
		TenantID:    tenantID,
	}, CodeStoredCredentialsInvalid)
}

// SwitchTenant re-issues a session scoped to another tenant for an
// already-registered email, using the server-stored association.
func (c *Client) SwitchTenant(ctx context.Context, email string, tenantID int) (session.Session, error) {
	return c.post(ctx, PathSwitchTenant, switchTenantRequest{Email: email, TenantID: tenantID}, CodeNoStoredCredentials)
}

func (c *Client) post(ctx context.Context, path string, payload any, fallback Code) (session.Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return session.Session{}, errors.Wrapf(err, "[gateway] encode %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return session.Session{}, errors.Wrapf(err, "[gateway] request %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return session.Session{}, errors.Wrapf(err, "[gateway] %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := FromResponse(resp, fallback)
		c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Err(err).Msg("auth call rejected")
		return session.Session{}, err
	}

	var sess session.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return session.Session{}, errors.Wrapf(err, "[gateway] decode %s", path)
	}
	c.log.Info().Str("path", path).Int("tenant_id", sess.TenantID).Msg("session issued")
	return sess, nil
}
