package stubserver

import (
	"strings"
	"sync"

	errs "github.com/attachly/go-attach-client/internal/errors"
)

// Tenant is an organization account in the stub's world, with the
// domains that resolve to it. Several tenants may share a domain, which
// is what drives the requires_selection path.
type Tenant struct {
	ID      int
	Name    string
	Domains []string
	Active  bool
}

// User is a registered email with its stored organization association.
type User struct {
	ID       int
	Email    string
	TenantID int
	Username string
	Secret   string
}

// MemoryStore holds the stub backend's tenant and user tables.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[int]Tenant
	users   map[string]User // keyed by email
	nextID  int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[int]Tenant),
		users:   make(map[string]User),
		nextID:  1,
	}
}

// AddTenant registers a tenant. Inactive tenants are kept but never
// resolved, mirroring the production backend's is_active filter.
func (s *MemoryStore) AddTenant(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

// TenantsForDomain returns the active tenants configured for domain.
func (s *MemoryStore) TenantsForDomain(domain string) []Tenant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Tenant
	for _, t := range s.tenants {
		if !t.Active {
			continue
		}
		for _, d := range t.Domains {
			if strings.EqualFold(d, domain) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// GetTenant returns the tenant with the given id.
func (s *MemoryStore) GetTenant(id int) (Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok || !t.Active {
		return Tenant{}, errs.ErrNotFound
	}
	return t, nil
}

// GetUser returns the user registered under email.
func (s *MemoryStore) GetUser(email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return User{}, errs.ErrNotFound
	}
	return u, nil
}

// UpsertUser creates or updates the user record for email, storing the
// validated organization association. Registration is an upsert by
// design; that is what makes it double as the silent re-auth call.
func (s *MemoryStore) UpsertUser(email string, tenantID int, username, secret string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		u = User{ID: s.nextID, Email: email}
		s.nextID++
	}
	u.TenantID = tenantID
	u.Username = username
	u.Secret = secret
	s.users[email] = u
	return u
}

// SetUserTenant re-points an existing user at another tenant.
func (s *MemoryStore) SetUserTenant(email string, tenantID int) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return User{}, errs.ErrNotFound
	}
	u.TenantID = tenantID
	s.users[email] = u
	return u, nil
}
