package stubserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attachly/go-attach-client/gateway"
	"github.com/attachly/go-attach-client/internal/config"
	"github.com/attachly/go-attach-client/internal/utils"
	"github.com/attachly/go-attach-client/kvstore"
	"github.com/attachly/go-attach-client/session"
	"github.com/attachly/go-attach-client/stubserver"
	"github.com/attachly/go-attach-client/tenants"
	"github.com/attachly/go-attach-client/transport"
)

func newTestServer(t *testing.T, opts ...stubserver.Option) *httptest.Server {
	t.Helper()

	store := stubserver.NewMemoryStore()
	store.AddTenant(stubserver.Tenant{ID: 1, Name: "Acme Industries", Domains: []string{"acme.test"}, Active: true})
	store.AddTenant(stubserver.Tenant{ID: 2, Name: "Globex North", Domains: []string{"globex.test"}, Active: true})
	store.AddTenant(stubserver.Tenant{ID: 3, Name: "Globex South", Domains: []string{"globex.test"}, Active: true})
	store.AddTenant(stubserver.Tenant{ID: 4, Name: "Initech", Domains: []string{"initech.test"}, Active: false})

	cfg := config.New()
	srv := httptest.NewServer(stubserver.New(cfg, cfg, store, opts...))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveThroughRealResolver(t *testing.T) {
	srv := newTestServer(t)
	resolver := tenants.NewResolver(srv.URL + "/api/v1")

	res, err := resolver.Resolve(context.Background(), "a@acme.test")
	require.NoError(t, err)
	require.NotNil(t, res.Tenant)
	require.Equal(t, tenants.Tenant{ID: 1, Name: "Acme Industries"}, *res.Tenant)

	res, err = resolver.Resolve(context.Background(), "a@globex.test")
	require.NoError(t, err)
	require.True(t, res.RequiresSelection)
	require.Len(t, res.Tenants, 2)

	_, err = resolver.Resolve(context.Background(), "a@nowhere.test")
	require.True(t, gateway.IsCode(err, gateway.CodeTenantNotFound))

	// Inactive tenants never resolve.
	_, err = resolver.Resolve(context.Background(), "a@initech.test")
	require.True(t, gateway.IsCode(err, gateway.CodeTenantNotFound))
}

func TestRegisterThenLogin(t *testing.T) {
	srv := newTestServer(t)
	client := gateway.New(srv.URL + "/api/v1")
	ctx := context.Background()

	// Login before any registration.
	_, err := client.Login(ctx, "a@acme.test", nil)
	require.True(t, gateway.IsCode(err, gateway.CodeUserNotFound))

	sess, err := client.Register(ctx, "a@acme.test", "jdoe", "hunter2", nil)
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.Equal(t, "bearer", sess.TokenType)
	require.Equal(t, 1, sess.TenantID)
	require.Equal(t, "a@acme.test", sess.Email)
	require.Positive(t, sess.ExpiresIn)

	sess, err = client.Login(ctx, "a@acme.test", nil)
	require.NoError(t, err)
	require.Equal(t, 1, sess.TenantID)
}

func TestRegisterRejectedCredential(t *testing.T) {
	srv := newTestServer(t, stubserver.WithCredentialCheck(func(tenant stubserver.Tenant, username, secret string) bool {
		return secret == "correct"
	}))
	client := gateway.New(srv.URL + "/api/v1")
	ctx := context.Background()

	_, err := client.Register(ctx, "a@acme.test", "jdoe", "wrong", nil)
	require.True(t, gateway.IsCode(err, gateway.CodeStoredCredentialsInvalid))
	require.True(t, gateway.IsRejection(err))

	// The rejection left no user behind.
	_, err = client.Login(ctx, "a@acme.test", nil)
	require.True(t, gateway.IsCode(err, gateway.CodeUserNotFound))

	_, err = client.Register(ctx, "a@acme.test", "jdoe", "correct", nil)
	require.NoError(t, err)
}

func TestRegisterOnSharedDomainNeedsSelection(t *testing.T) {
	srv := newTestServer(t)
	client := gateway.New(srv.URL + "/api/v1")
	ctx := context.Background()

	// Without a tenant the request is ambiguous and outside the
	// taxonomy.
	_, err := client.Register(ctx, "a@globex.test", "jdoe", "hunter2", nil)
	require.Error(t, err)
	_, isTaxonomy := gateway.CodeOf(err)
	require.False(t, isTaxonomy)

	sess, err := client.Register(ctx, "a@globex.test", "jdoe", "hunter2", utils.Ptr(3))
	require.NoError(t, err)
	require.Equal(t, 3, sess.TenantID)

	// A tenant outside the email's domain is rejected.
	_, err = client.Register(ctx, "a@globex.test", "jdoe", "hunter2", utils.Ptr(1))
	require.True(t, gateway.IsCode(err, gateway.CodeTenantNotFound))
}

func TestSwitchTenantWithinDomain(t *testing.T) {
	srv := newTestServer(t)
	client := gateway.New(srv.URL + "/api/v1")
	ctx := context.Background()

	_, err := client.Register(ctx, "a@globex.test", "jdoe", "hunter2", utils.Ptr(2))
	require.NoError(t, err)

	sess, err := client.SwitchTenant(ctx, "a@globex.test", 3)
	require.NoError(t, err)
	require.Equal(t, 3, sess.TenantID)

	// The association moved: a plain login now lands in the new tenant.
	sess, err = client.Login(ctx, "a@globex.test", nil)
	require.NoError(t, err)
	require.Equal(t, 3, sess.TenantID)

	// Tenant 1 belongs to another domain.
	_, err = client.SwitchTenant(ctx, "a@globex.test", 1)
	require.True(t, gateway.IsRejection(err))
}

func TestMeEndpointThroughInterceptor(t *testing.T) {
	srv := newTestServer(t)
	client := gateway.New(srv.URL + "/api/v1")
	ctx := context.Background()

	issued, err := client.Register(ctx, "a@acme.test", "jdoe", "hunter2", nil)
	require.NoError(t, err)

	sessions := session.NewStore(kvstore.NewMemory())
	require.NoError(t, sessions.Set(issued))
	authed := transport.New(sessions, nil).Client()

	resp, err := authed.Get(srv.URL + "/api/v1/me")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A garbage token on a protected endpoint forces logout.
	require.NoError(t, sessions.Set(session.Session{AccessToken: "garbage", TokenType: "bearer"}))
	_, err = authed.Get(srv.URL + "/api/v1/me")
	require.True(t, gateway.IsCode(err, gateway.CodeAuthRequired))
	require.False(t, sessions.IsAuthenticated())
}
