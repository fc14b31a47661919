package tenants

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/attachly/go-attach-client/gateway"
)

// Resolver wraps the backend's tenant-resolution endpoint. It carries
// no retry logic: whether a failure is retried depends on flow state,
// so retries belong to the caller.
type Resolver struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.http = h
	}
}

// WithLogger sets the logger for resolution outcomes.
func WithLogger(log zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.log = log
	}
}

// NewResolver creates a Resolver against the given API base URL.
func NewResolver(baseURL string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type resolveRequest struct {
	Email string `json:"email"`
}

type resolveResponse struct {
	TenantID          *int     `json:"tenant_id"`
	TenantName        *string  `json:"tenant_name"`
	Tenants           []Tenant `json:"tenants"`
	RequiresSelection bool     `json:"requires_selection"`
}

// Resolve maps an email to its tenant, or to the candidate list when
// the domain is shared by several tenants. A domain with no configured
// organization comes back as gateway.CodeTenantNotFound.
func (r *Resolver) Resolve(ctx context.Context, email string) (Resolution, error) {
	body, err := json.Marshal(resolveRequest{Email: email})
	if err != nil {
		return Resolution{}, errors.Wrap(err, "[tenants] encode resolve")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+gateway.PathTenantResolve, bytes.NewReader(body))
	if err != nil {
		return Resolution{}, errors.Wrap(err, "[tenants] resolve request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return Resolution{}, errors.Wrap(err, "[tenants] resolve")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := gateway.FromResponse(resp, gateway.CodeTenantNotFound)
		r.log.Debug().Str("email", email).Int("status", resp.StatusCode).Err(err).Msg("tenant resolution failed")
		return Resolution{}, err
	}

	var decoded resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Resolution{}, errors.Wrap(err, "[tenants] decode resolve")
	}

	if decoded.RequiresSelection {
		r.log.Info().Str("email", email).Int("candidates", len(decoded.Tenants)).Msg("tenant selection required")
		return Resolution{Tenants: decoded.Tenants, RequiresSelection: true}, nil
	}
	if decoded.TenantID == nil {
		return Resolution{}, errors.New("[tenants] resolve response missing tenant")
	}

	tenant := Tenant{ID: *decoded.TenantID}
	if decoded.TenantName != nil {
		tenant.Name = *decoded.TenantName
	}
	r.log.Info().Str("email", email).Int("tenant_id", tenant.ID).Msg("tenant resolved")
	return Resolution{Tenant: &tenant}, nil
}
