// Package stubserver is a development stand-in for the attachment
// backend: the four auth endpoints plus one protected sample endpoint,
// backed by in-memory tables. The surfaces and the HTTP wrappers are
// developed and tested against it.
package stubserver

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/attachly/go-attach-client/internal/config"
)

const apiPrefix = "/api/v1"

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	store  *MemoryStore
	issuer *TokenIssuer

	// checkCredential decides whether an organization credential is
	// valid for a tenant. The default accepts any non-empty pair; tests
	// and demos swap in stricter checks.
	checkCredential func(t Tenant, username, secret string) bool
}

// Option configures a Server.
type Option func(*Server)

// WithCredentialCheck replaces the organization-credential validator.
func WithCredentialCheck(fn func(t Tenant, username, secret string) bool) Option {
	return func(s *Server) {
		s.checkCredential = fn
	}
}

// New creates the stub backend over the given store.
func New(cfg config.StubConfig, env config.EnvConfig, store *MemoryStore, opts ...Option) *Server {
	s := &Server{
		env:    env.GetEnv(),
		mux:    http.NewServeMux(),
		store:  store,
		issuer: NewTokenIssuer(cfg.GetTokenSecret(), time.Duration(cfg.GetTokenTTLMinutes())*time.Minute),
		checkCredential: func(t Tenant, username, secret string) bool {
			return username != "" && secret != ""
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	mw := s.APIMiddleware()

	s.RegisterRouteFunc("POST "+apiPrefix+"/tenant/resolve", ChainMiddleware(s.TenantResolveHandler(), mw...))
	s.RegisterRouteFunc("POST "+apiPrefix+"/auth/login", ChainMiddleware(s.LoginHandler(), mw...))
	s.RegisterRouteFunc("POST "+apiPrefix+"/auth/register", ChainMiddleware(s.RegisterHandler(), mw...))
	s.RegisterRouteFunc("POST "+apiPrefix+"/auth/switch-tenant", ChainMiddleware(s.SwitchTenantHandler(), mw...))

	// Protected sample endpoint; its 401 is the "expired session"
	// signal the interceptor reacts to.
	s.RegisterRouteFunc("GET "+apiPrefix+"/me", ChainMiddleware(s.MeHandler(), mw...))
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	displayMethod := method
	if color, ok := methodColors[method]; ok {
		paddedMethod := fmt.Sprintf(" %-7s", method)
		displayMethod = color + paddedMethod + ResetColor
	}
	log.Println("["+displayMethod+"]", path)
}
