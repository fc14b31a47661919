package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attachly/go-attach-client/gateway"
	"github.com/attachly/go-attach-client/internal/utils"
)

func TestIsAuthPath(t *testing.T) {
	require.True(t, gateway.IsAuthPath("/api/v1/auth/login"))
	require.True(t, gateway.IsAuthPath("/api/v1/auth/register"))
	require.True(t, gateway.IsAuthPath("/api/v1/auth/switch-tenant"))
	require.True(t, gateway.IsAuthPath("/api/v1/tenant/resolve"))
	require.False(t, gateway.IsAuthPath("/api/v1/me"))
	require.False(t, gateway.IsAuthPath("/api/v1/attachments"))
}

func TestRegisterIssuesSession(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/register", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "bearer",
			"tenant_id":    4,
			"user_id":      7,
			"email":        "a@acme.test",
			"expires_in":   28800,
		})
	}))
	defer srv.Close()

	client := gateway.New(srv.URL)
	sess, err := client.Register(context.Background(), "a@acme.test", "jdoe", "hunter2", utils.Ptr(4))
	require.NoError(t, err)
	require.Equal(t, "tok-123", sess.AccessToken)
	require.Equal(t, 4, sess.TenantID)
	require.Equal(t, "a@acme.test", sess.Email)

	require.Equal(t, "jdoe", got["erp_username"])
	require.Equal(t, "hunter2", got["erp_password_or_token"])
	require.Equal(t, float64(4), got["tenant_id"])
}

func TestRegisterOmitsTenantIDWhenUnambiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.NotContains(t, got, "tenant_id")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "tenant_id": 1})
	}))
	defer srv.Close()

	client := gateway.New(srv.URL)
	_, err := client.Register(context.Background(), "a@acme.test", "jdoe", "hunter2", nil)
	require.NoError(t, err)
}

func TestRejectionCarriesHeaderCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Error-Code", "USER_NOT_FOUND")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "no such user"})
	}))
	defer srv.Close()

	client := gateway.New(srv.URL)
	_, err := client.Login(context.Background(), "a@acme.test", nil)
	require.True(t, gateway.IsCode(err, gateway.CodeUserNotFound))
	require.True(t, gateway.IsRejection(err))
}

func TestRejectionWithoutHeaderUsesBodyDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "STORED_CREDENTIALS_INVALID"})
	}))
	defer srv.Close()

	client := gateway.New(srv.URL)
	_, err := client.Register(context.Background(), "a@acme.test", "jdoe", "bad", nil)
	require.True(t, gateway.IsCode(err, gateway.CodeStoredCredentialsInvalid))
}

func TestRejectionWithoutAnyCodeUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "nope"})
	}))
	defer srv.Close()

	client := gateway.New(srv.URL)

	_, err := client.Login(context.Background(), "a@acme.test", nil)
	require.True(t, gateway.IsCode(err, gateway.CodeNoStoredCredentials))

	_, err = client.Register(context.Background(), "a@acme.test", "jdoe", "bad", nil)
	require.True(t, gateway.IsCode(err, gateway.CodeStoredCredentialsInvalid))
}

func TestServerErrorIsNotTaxonomy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := gateway.New(srv.URL)
	_, err := client.Login(context.Background(), "a@acme.test", nil)
	require.Error(t, err)
	_, isTaxonomy := gateway.CodeOf(err)
	require.False(t, isTaxonomy)
	require.False(t, gateway.IsRejection(err))
}

func TestSwitchTenantSendsTenantID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/switch-tenant", r.URL.Path)
		var got map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, float64(3), got["tenant_id"])
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "tenant_id": 3})
	}))
	defer srv.Close()

	client := gateway.New(srv.URL)
	sess, err := client.SwitchTenant(context.Background(), "a@globex.test", 3)
	require.NoError(t, err)
	require.Equal(t, 3, sess.TenantID)
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	inner := &gateway.Error{Code: gateway.CodeTenantNotFound, Status: http.StatusNotFound}
	wrapped := wrapErr{inner}

	code, ok := gateway.CodeOf(wrapped)
	require.True(t, ok)
	require.Equal(t, gateway.CodeTenantNotFound, code)
	require.False(t, gateway.IsRejection(wrapped))
}

type wrapErr struct{ err error }

func (w wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w wrapErr) Unwrap() error { return w.err }
