package stubserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/attachly/go-attach-client/tenants"
)

const contentTypeJSON = "application/json; charset=utf-8"

type resolveRequest struct {
	Email string `json:"email"`
}

type resolveResponse struct {
	TenantID          *int         `json:"tenant_id,omitempty"`
	TenantName        *string      `json:"tenant_name,omitempty"`
	Tenants           []tenantInfo `json:"tenants,omitempty"`
	RequiresSelection bool         `json:"requires_selection"`
}

type tenantInfo struct {
	TenantID   int    `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	TenantID *int   `json:"tenant_id"`
}

type registerRequest struct {
	Email       string `json:"email"`
	ERPUsername string `json:"erp_username"`
	ERPPassword string `json:"erp_password_or_token"`
	TenantID    *int   `json:"tenant_id"`
}

type switchTenantRequest struct {
	Email    string `json:"email"`
	TenantID int    `json:"tenant_id"`
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	TenantID    int    `json:"tenant_id"`
	UserID      int    `json:"user_id"`
	Email       string `json:"email"`
	ExpiresIn   int    `json:"expires_in"`
}

// TenantResolveHandler maps an email's domain to its tenant, or to the
// candidate list when the domain is shared.
func (s *Server) TenantResolveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		if !decodeBody(w, r, &req) {
			return
		}

		domain, err := tenants.DomainFromEmail(req.Email)
		if err != nil {
			writeError(w, http.StatusBadRequest, "", "Invalid email format")
			return
		}

		candidates := s.store.TenantsForDomain(domain)
		switch len(candidates) {
		case 0:
			writeError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "TENANT_NOT_FOUND")
		case 1:
			t := candidates[0]
			writeJSON(w, http.StatusOK, resolveResponse{TenantID: &t.ID, TenantName: &t.Name})
		default:
			infos := make([]tenantInfo, 0, len(candidates))
			for _, t := range candidates {
				infos = append(infos, tenantInfo{TenantID: t.ID, TenantName: t.Name})
			}
			writeJSON(w, http.StatusOK, resolveResponse{Tenants: infos, RequiresSelection: true})
		}
	}
}

// RegisterHandler validates the organization credential, upserts the
// user record, and issues a session.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeBody(w, r, &req) {
			return
		}

		tenant, ok := s.pickTenant(w, req.Email, req.TenantID)
		if !ok {
			return
		}

		if !s.checkCredential(tenant, req.ERPUsername, req.ERPPassword) {
			log.Info().Str("email", req.Email).Msg("organization credential rejected")
			writeError(w, http.StatusUnauthorized, "STORED_CREDENTIALS_INVALID", "Invalid ERP credentials")
			return
		}

		user := s.store.UpsertUser(req.Email, tenant.ID, req.ERPUsername, req.ERPPassword)
		s.issueSession(w, user, tenant.ID)
	}
}

// LoginHandler issues a session for a pre-registered email with no
// credential entry.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeBody(w, r, &req) {
			return
		}

		user, err := s.store.GetUser(req.Email)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "USER_NOT_FOUND", "No account for this email")
			return
		}
		if user.Secret == "" {
			writeError(w, http.StatusUnauthorized, "NO_STORED_CREDENTIALS", "No stored credentials for this email")
			return
		}

		tenantID := user.TenantID
		if req.TenantID != nil {
			tenantID = *req.TenantID
		}
		if _, err := s.store.GetTenant(tenantID); err != nil {
			writeError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "TENANT_NOT_FOUND")
			return
		}
		s.issueSession(w, user, tenantID)
	}
}

// SwitchTenantHandler re-issues a session scoped to another tenant
// using the server-stored association.
func (s *Server) SwitchTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req switchTenantRequest
		if !decodeBody(w, r, &req) {
			return
		}

		user, err := s.store.GetUser(req.Email)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "USER_NOT_FOUND", "No account for this email")
			return
		}
		if user.Secret == "" {
			writeError(w, http.StatusUnauthorized, "NO_STORED_CREDENTIALS", "No stored credentials for this email")
			return
		}

		domain, err := tenants.DomainFromEmail(req.Email)
		if err != nil {
			writeError(w, http.StatusBadRequest, "", "Invalid email format")
			return
		}
		if !tenantInDomain(s.store.TenantsForDomain(domain), req.TenantID) {
			writeError(w, http.StatusUnauthorized, "", "Email is not entitled to this tenant")
			return
		}

		user, err = s.store.SetUserTenant(req.Email, req.TenantID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "USER_NOT_FOUND", "No account for this email")
			return
		}
		s.issueSession(w, user, req.TenantID)
	}
}

// MeHandler is the protected sample endpoint: it echoes the identity
// inside a valid bearer token and answers 401 otherwise.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, http.StatusUnauthorized, "", "Missing bearer token")
			return
		}

		claims, err := s.issuer.Parse(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "", "Invalid or expired token")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":   claims.UserID(),
			"tenant_id": claims.TenantID,
			"email":     claims.Email,
		})
	}
}

// pickTenant resolves the tenant a registration lands in: the explicit
// tenant_id when given (it must belong to the email's domain), the sole
// candidate otherwise.
func (s *Server) pickTenant(w http.ResponseWriter, email string, tenantID *int) (Tenant, bool) {
	domain, err := tenants.DomainFromEmail(email)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid email format")
		return Tenant{}, false
	}

	candidates := s.store.TenantsForDomain(domain)
	if len(candidates) == 0 {
		writeError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "No tenant configured for this email domain")
		return Tenant{}, false
	}

	if tenantID != nil {
		for _, t := range candidates {
			if t.ID == *tenantID {
				return t, true
			}
		}
		writeError(w, http.StatusNotFound, "TENANT_NOT_FOUND", "Tenant not configured for this email domain")
		return Tenant{}, false
	}

	if len(candidates) > 1 {
		writeError(w, http.StatusBadRequest, "", "Tenant selection required for this email domain")
		return Tenant{}, false
	}
	return candidates[0], true
}

func (s *Server) issueSession(w http.ResponseWriter, user User, tenantID int) {
	token, expiresIn, err := s.issuer.Issue(user.ID, tenantID, user.Email)
	if err != nil {
		log.Error().Err(err).Msg("token issuance failed")
		writeError(w, http.StatusInternalServerError, "", "Failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: token,
		TokenType:   "bearer",
		TenantID:    tenantID,
		UserID:      user.ID,
		Email:       user.Email,
		ExpiresIn:   expiresIn,
	})
}

func tenantInDomain(candidates []Tenant, tenantID int) bool {
	for _, t := range candidates {
		if t.ID == tenantID {
			return true
		}
	}
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "", "Malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	if code != "" {
		w.Header().Set("X-Error-Code", code)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
