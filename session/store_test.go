package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attachly/go-attach-client/kvstore"
	"github.com/attachly/go-attach-client/session"
)

func testSession() session.Session {
	return session.Session{
		AccessToken: "tok-123",
		TokenType:   "bearer",
		TenantID:    4,
		TenantName:  "Acme Industries",
		UserID:      7,
		Email:       "a@acme.test",
		ExpiresIn:   28800,
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	store := session.NewStore(kvstore.NewMemory())

	require.NoError(t, store.Set(testSession()))

	got, ok, err := store.Get()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testSession(), got)
}

func TestGetWithoutSession(t *testing.T) {
	store := session.NewStore(kvstore.NewMemory())

	_, ok, err := store.Get()
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, store.IsAuthenticated())
}

func TestSetWritesIndividualKeysForOlderSurfaces(t *testing.T) {
	kv := kvstore.NewMemory()
	store := session.NewStore(kv)

	require.NoError(t, store.Set(testSession()))

	token, ok, err := kv.Get(kvstore.Key("access_token"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-123", token)

	tenantID, ok, err := kv.Get(kvstore.Key("tenant_id"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "4", tenantID)

	email, ok, err := kv.Get(kvstore.Key("user_email"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a@acme.test", email)
}

func TestTokenKeyWinsOverBlob(t *testing.T) {
	kv := kvstore.NewMemory()
	store := session.NewStore(kv)
	require.NoError(t, store.Set(testSession()))

	// Another surface rotated just the token key.
	require.NoError(t, kv.SetMany(map[string]string{kvstore.Key("access_token"): "tok-456"}))

	got, ok, err := store.Get()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-456", got.AccessToken)
	require.Equal(t, 4, got.TenantID)
}

func TestClearRemovesSession(t *testing.T) {
	kv := kvstore.NewMemory()
	store := session.NewStore(kv)
	require.NoError(t, store.Set(testSession()))
	require.True(t, store.IsAuthenticated())

	require.NoError(t, store.Clear())

	require.False(t, store.IsAuthenticated())
	_, ok, err := store.Get()
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = kv.Get(kvstore.Key("user_info"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOnTokenChangeFiltersOtherKeys(t *testing.T) {
	kv := kvstore.NewMemory()
	store := session.NewStore(kv)

	fired := 0
	cancel := store.OnTokenChange(func() { fired++ })
	defer cancel()

	require.NoError(t, kv.SetMany(map[string]string{kvstore.Key("tenant_name"): "Acme"}))
	require.Equal(t, 0, fired)

	require.NoError(t, kv.SetMany(map[string]string{kvstore.Key("access_token"): "tok-123"}))
	require.Equal(t, 1, fired)

	require.NoError(t, kv.DeleteMany(kvstore.Key("access_token")))
	require.Equal(t, 2, fired)
}
