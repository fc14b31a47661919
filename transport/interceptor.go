// Package transport wraps every authenticated outbound call: it
// attaches the current session's bearer token and turns a 401 from any
// non-auth endpoint into the synthetic authentication-required
// condition that forces the login flow to restart.
package transport

import (
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/attachly/go-attach-client/gateway"
	"github.com/attachly/go-attach-client/session"
)

// ErrAuthRequired is returned (wrapped in *url.Error by http.Client)
// when a call needs a session and there is none, or when the backend
// rejected the session token. Check with
// gateway.IsCode(err, gateway.CodeAuthRequired).
var ErrAuthRequired = &gateway.Error{Code: gateway.CodeAuthRequired, Status: http.StatusUnauthorized, Message: "authentication required"}

// Interceptor is an http.RoundTripper for authenticated API calls.
// Token attachment is delegated to oauth2.Transport; the session store
// is its token source, so the freshest token on the device is used even
// when another surface re-authenticated since our last call.
type Interceptor struct {
	inner *oauth2.Transport
	store *session.Store
	log   zerolog.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger for forced-logout events.
func WithLogger(log zerolog.Logger) Option {
	return func(i *Interceptor) {
		i.log = log
	}
}

// New creates an Interceptor over base (nil means
// http.DefaultTransport).
func New(store *session.Store, base http.RoundTripper, opts ...Option) *Interceptor {
	i := &Interceptor{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.inner = &oauth2.Transport{
		Source: &storeSource{store: store},
		Base:   base,
	}
	return i
}

// Client returns an *http.Client that sends every request through the
// interceptor.
func (i *Interceptor) Client() *http.Client {
	return &http.Client{Transport: i}
}

func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := i.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !gateway.IsAuthPath(req.URL.Path) {
		// The session the backend once issued is no longer good. A 401
		// from an auth endpoint means "bad credentials" and must not
		// log the device out; this one means "expired session" and
		// must.
		resp.Body.Close()
		if clearErr := i.store.Clear(); clearErr != nil {
			i.log.Error().Err(clearErr).Msg("failed to clear session after 401")
		}
		i.log.Warn().Str("path", req.URL.Path).Msg("session rejected by backend, login required")
		return nil, ErrAuthRequired
	}

	return resp, nil
}

// storeSource adapts the session store to oauth2.TokenSource. Reading
// per request is deliberate: a write from another surface is
// authoritative on our next call.
type storeSource struct {
	store *session.Store
}

func (s *storeSource) Token() (*oauth2.Token, error) {
	sess, ok, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAuthRequired
	}
	return &oauth2.Token{
		AccessToken: sess.AccessToken,
		TokenType:   sess.TokenType,
	}, nil
}

var _ http.RoundTripper = (*Interceptor)(nil)
var _ oauth2.TokenSource = (*storeSource)(nil)
