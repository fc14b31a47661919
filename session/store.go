package session

import (
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"

	errs "github.com/attachly/go-attach-client/internal/errors"
	"github.com/attachly/go-attach-client/kvstore"
)

// Shared state keys. The individual keys exist so older surfaces that
// read single fields keep working; user_info carries the whole session
// as one blob and is what Get trusts, since a SetMany writes it in the
// same atomic step.
var (
	keyAccessToken = kvstore.Key("access_token")
	keyTenantID    = kvstore.Key("tenant_id")
	keyTenantName  = kvstore.Key("tenant_name")
	keyUserEmail   = kvstore.Key("user_email")
	keyUserInfo    = kvstore.Key("user_info")
)

// Store reads and writes the device's active Session. It holds no
// in-memory copy: every Get goes to the shared store, so a write from
// another surface is authoritative on the next read.
type Store struct {
	kv  kvstore.Store
	log zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates a Store over the given shared key-value store.
func NewStore(kv kvstore.Store, opts ...StoreOption) *Store {
	s := &Store{kv: kv, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set persists sess as the device's active session, replacing any
// previous one. All fields land in one atomic write.
func (s *Store) Set(sess Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return errs.Wrapf(err, "session.Store.Set encode")
	}
	err = s.kv.SetMany(map[string]string{
		keyAccessToken: sess.AccessToken,
		keyTenantID:    strconv.Itoa(sess.TenantID),
		keyTenantName:  sess.TenantName,
		keyUserEmail:   sess.Email,
		keyUserInfo:    string(blob),
	})
	if err != nil {
		return errs.Wrapf(err, "session.Store.Set")
	}
	s.log.Info().
		Int("tenant_id", sess.TenantID).
		Str("email", sess.Email).
		Msg("session established")
	return nil
}

// Get returns the active session, if any. A missing or empty token
// means no session.
func (s *Store) Get() (Session, bool, error) {
	token, ok, err := s.kv.Get(keyAccessToken)
	if err != nil {
		return Session{}, false, errs.Wrapf(err, "session.Store.Get")
	}
	if !ok || token == "" {
		return Session{}, false, nil
	}

	blob, ok, err := s.kv.Get(keyUserInfo)
	if err != nil {
		return Session{}, false, errs.Wrapf(err, "session.Store.Get")
	}

	var sess Session
	if ok && blob != "" {
		if err := json.Unmarshal([]byte(blob), &sess); err != nil {
			return Session{}, false, errs.Wrapf(err, "session.Store.Get decode")
		}
	}
	// The token key is what other surfaces key their logout on; it wins
	// over whatever the blob carries.
	sess.AccessToken = token
	return sess, true, nil
}

// Clear removes the session. Cached organization credentials are a
// separate concern and are not touched here.
func (s *Store) Clear() error {
	err := s.kv.DeleteMany(keyAccessToken, keyTenantID, keyTenantName, keyUserEmail, keyUserInfo)
	if err != nil {
		return errs.Wrapf(err, "session.Store.Clear")
	}
	s.log.Info().Msg("session cleared")
	return nil
}

// IsAuthenticated reports whether a token is currently present.
func (s *Store) IsAuthenticated() bool {
	token, ok, err := s.kv.Get(keyAccessToken)
	if err != nil {
		s.log.Debug().Err(err).Msg("authentication check failed")
		return false
	}
	return ok && token != ""
}

// OnTokenChange registers fn to run when the access token key changes,
// typically because another surface logged in or out. Delivery is
// best-effort (see kvstore.Store.Subscribe).
func (s *Store) OnTokenChange(fn func()) (cancel func()) {
	return s.kv.Subscribe(func(key string) {
		if key == keyAccessToken {
			fn()
		}
	})
}
