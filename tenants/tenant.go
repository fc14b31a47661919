// Package tenants resolves which organization an email belongs to. The
// mapping from email domain to tenant is decided server-side; the
// client only learns whether the domain resolved to one tenant or to a
// list the user must pick from.
package tenants

import (
	"strings"

	"github.com/pkg/errors"
)

// Tenant is an organization account, the unit of multi-tenancy.
type Tenant struct {
	ID   int    `json:"tenant_id"`
	Name string `json:"tenant_name"`
}

// Resolution is the outcome of resolving an email. Either Tenant is set
// (direct resolution) or RequiresSelection is true and Tenants holds
// the candidates.
type Resolution struct {
	Tenant            *Tenant
	Tenants           []Tenant
	RequiresSelection bool
}

// ErrInvalidEmail reports an email that fails the syntactic shape
// check. Nothing beyond shape is validated client-side.
var ErrInvalidEmail = errors.New("invalid email format")

// DomainFromEmail extracts the lowercased domain, the way the backend
// does before its tenant lookup.
func DomainFromEmail(email string) (string, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(parts[1]), nil
}
