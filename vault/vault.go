// Package vault caches the organization credential that lets a trusted
// device re-authenticate silently. A cached credential outlives any one
// session: a session expires in hours, the credential persists until
// explicit logout or until the backend rejects it.
package vault

import (
	"github.com/rs/zerolog"

	errs "github.com/attachly/go-attach-client/internal/errors"
	"github.com/attachly/go-attach-client/kvstore"
)

var (
	keyUsername     = kvstore.Key("erp_username")
	keyPassword     = kvstore.Key("erp_password")
	keyRegComplete  = kvstore.Key("registration_complete")
	keyBoundEmail   = kvstore.Key("credential_email")
	registrationSet = "true"
)

// Credential is one organization login for one email.
type Credential struct {
	Username string
	Secret   string
}

// Vault stores the device's cached Credential together with the
// registration-complete marker. The marker records that interactive
// credential entry succeeded at least once on this device; without it a
// present credential is not trusted and the interactive form is forced.
type Vault struct {
	kv    kvstore.Store
	codec Codec
	log   zerolog.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithCodec selects how the secret is encoded at rest. The default is
// PlainCodec; surfaces that can keep a seal key out of the shared state
// file should pass a SealedCodec instead.
func WithCodec(c Codec) Option {
	return func(v *Vault) {
		v.codec = c
	}
}

// WithLogger sets the logger for vault lifecycle events.
func WithLogger(log zerolog.Logger) Option {
	return func(v *Vault) {
		v.log = log
	}
}

// New creates a Vault over the given shared key-value store.
func New(kv kvstore.Store, opts ...Option) *Vault {
	v := &Vault{kv: kv, codec: PlainCodec{}, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Save stores the credential for email and sets the
// registration-complete marker, enabling silent re-auth on this device.
// Called only immediately after the backend accepted the credential.
func (v *Vault) Save(email, username, secret string) error {
	encoded, err := v.codec.Encode(secret)
	if err != nil {
		return errs.Wrapf(err, "vault.Save encode")
	}
	err = v.kv.SetMany(map[string]string{
		keyUsername:    username,
		keyPassword:    encoded,
		keyBoundEmail:  email,
		keyRegComplete: registrationSet,
	})
	if err != nil {
		return errs.Wrapf(err, "vault.Save")
	}
	v.log.Info().Str("email", email).Msg("credential cached for silent re-auth")
	return nil
}

// Load returns the cached credential, but only if it was saved for the
// given email. A credential bound to a different email is not trusted
// and is reported as absent.
func (v *Vault) Load(email string) (Credential, bool, error) {
	bound, ok, err := v.kv.Get(keyBoundEmail)
	if err != nil {
		return Credential{}, false, errs.Wrapf(err, "vault.Load")
	}
	if !ok || bound != email {
		return Credential{}, false, nil
	}

	username, ok, err := v.kv.Get(keyUsername)
	if err != nil || !ok {
		return Credential{}, false, errs.Wrapf(err, "vault.Load")
	}
	encoded, ok, err := v.kv.Get(keyPassword)
	if err != nil || !ok {
		return Credential{}, false, errs.Wrapf(err, "vault.Load")
	}

	secret, err := v.codec.Decode(encoded)
	if err != nil {
		// Wrong seal key or corrupt payload. Not trusted, but also not
		// cleared here: the flow decides when a credential is known-bad.
		v.log.Warn().Err(err).Msg("cached credential could not be decoded")
		return Credential{}, false, nil
	}
	return Credential{Username: username, Secret: secret}, true, nil
}

// BoundEmail returns the email the cached credential was saved for.
// Surfaces use it to relaunch the login flow with no typing at all.
func (v *Vault) BoundEmail() (string, bool) {
	bound, ok, err := v.kv.Get(keyBoundEmail)
	if err != nil {
		v.log.Debug().Err(err).Msg("bound email read failed")
		return "", false
	}
	return bound, ok && bound != ""
}

// RegistrationComplete reports whether this device has completed
// interactive credential entry at least once.
func (v *Vault) RegistrationComplete() bool {
	val, ok, err := v.kv.Get(keyRegComplete)
	if err != nil {
		v.log.Debug().Err(err).Msg("registration marker read failed")
		return false
	}
	return ok && val == registrationSet
}

// Clear removes the credential and the registration-complete marker.
// Used on logout and whenever the backend rejects a silent re-auth, so
// a known-bad credential is never retried indefinitely.
func (v *Vault) Clear() error {
	err := v.kv.DeleteMany(keyUsername, keyPassword, keyBoundEmail, keyRegComplete)
	if err != nil {
		return errs.Wrapf(err, "vault.Clear")
	}
	v.log.Warn().Msg("cached credential cleared")
	return nil
}
