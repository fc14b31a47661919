// Package flow orchestrates tenant resolution, silent re-auth, and
// interactive credential entry into the single login state machine
// every surface drives. What happens next is decided here and nowhere
// else; surfaces only render the step the flow asks for.
package flow

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/attachly/go-attach-client/gateway"
	"github.com/attachly/go-attach-client/internal/utils"
	"github.com/attachly/go-attach-client/session"
	"github.com/attachly/go-attach-client/tenants"
	"github.com/attachly/go-attach-client/vault"
)

// State names the step the flow is on.
type State string

const (
	StateEmail         State = "email"
	StateTenantSelect  State = "tenant_select"
	StateSilentReauth  State = "silent_reauth"
	StateCredentials   State = "credentials"
	StateAuthenticated State = "authenticated"
	StateCancelled     State = "cancelled"
	StateFailed        State = "failed"
)

// ErrFlowInProgress is returned when a second entry point is invoked
// while the flow is already running. Flow state is a singleton per
// surface instance.
var ErrFlowInProgress = errors.New("login flow already in progress")

// Resolver maps an email to its tenant(s).
type Resolver interface {
	Resolve(ctx context.Context, email string) (tenants.Resolution, error)
}

// Gateway performs the backend auth operations.
type Gateway interface {
	Login(ctx context.Context, email string, tenantID *int) (session.Session, error)
	Register(ctx context.Context, email, username, secret string, tenantID *int) (session.Session, error)
	SwitchTenant(ctx context.Context, email string, tenantID int) (session.Session, error)
}

// Sessions is the device's session store.
type Sessions interface {
	Get() (session.Session, bool, error)
	Set(session.Session) error
	Clear() error
}

// Credentials is the device's credential vault.
type Credentials interface {
	Save(email, username, secret string) error
	Load(email string) (vault.Credential, bool, error)
	BoundEmail() (string, bool)
	RegistrationComplete() bool
	Clear() error
}

// Deps holds the flow's collaborators.
type Deps struct {
	Resolver    Resolver
	Gateway     Gateway
	Sessions    Sessions
	Credentials Credentials
}

// Flow is the login state machine for one surface instance.
type Flow struct {
	deps Deps
	ui   UI
	log  zerolog.Logger

	runMu sync.Mutex

	state   State
	email   string
	tenant  *tenants.Tenant
	options []tenants.Tenant
	notice  string

	// seeded skips the email prompt once, for relaunches that already
	// know the email (cached credential, re-enter, change tenant).
	seeded bool

	// switching marks the change-tenant entry point: tenant selection
	// is forced and SwitchTenant is tried before the credential form.
	switching bool

	result session.Session
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger for state transitions and auth outcomes.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Flow) {
		f.log = log
	}
}

// New creates a login flow. All dependencies and the UI are required.
func New(deps Deps, ui UI, opts ...Option) (*Flow, error) {
	if deps.Resolver == nil {
		return nil, errors.New("[flow.New] Resolver is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("[flow.New] Gateway is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[flow.New] Sessions is required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("[flow.New] Credentials is required")
	}
	if ui == nil {
		return nil, errors.New("[flow.New] UI is required")
	}

	f := &Flow{deps: deps, ui: ui, log: zerolog.Nop(), state: StateEmail}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State returns the step the flow is currently on.
func (f *Flow) State() State {
	return f.state
}

// Run is the main entry point. With a session already active it
// short-circuits to success without any network call. Otherwise it
// starts from email entry, seeding the email from the cached credential
// when one is present so a trusted device re-authenticates with zero
// interaction.
func (f *Flow) Run(ctx context.Context) (session.Session, error) {
	if !f.runMu.TryLock() {
		return session.Session{}, ErrFlowInProgress
	}
	defer f.runMu.Unlock()

	if sess, ok, err := f.deps.Sessions.Get(); err == nil && ok {
		f.setState(StateAuthenticated)
		return sess, nil
	}

	f.reset()
	if email, ok := f.deps.Credentials.BoundEmail(); ok && f.deps.Credentials.RegistrationComplete() {
		f.email = email
		f.seeded = true
	}
	return f.run(ctx)
}

// ReenterCredentials jumps straight to the credential form for the
// active session's email and tenant, bypassing tenant resolution.
func (f *Flow) ReenterCredentials(ctx context.Context) (session.Session, error) {
	if !f.runMu.TryLock() {
		return session.Session{}, ErrFlowInProgress
	}
	defer f.runMu.Unlock()

	sess, ok, err := f.deps.Sessions.Get()
	if err != nil || !ok {
		return session.Session{}, errors.New("[flow.ReenterCredentials] no active session")
	}

	f.reset()
	f.email = sess.Email
	f.tenant = &tenants.Tenant{ID: sess.TenantID, Name: sess.TenantName}
	f.setState(StateCredentials)
	return f.run(ctx)
}

// ChangeTenant re-resolves tenants for the active session's email and
// forces the tenant picker, even when the domain previously resolved to
// a single tenant. The chosen tenant is first tried via SwitchTenant
// (server-stored association), falling back to the credential form.
func (f *Flow) ChangeTenant(ctx context.Context) (session.Session, error) {
	if !f.runMu.TryLock() {
		return session.Session{}, ErrFlowInProgress
	}
	defer f.runMu.Unlock()

	sess, ok, err := f.deps.Sessions.Get()
	if err != nil || !ok {
		return session.Session{}, errors.New("[flow.ChangeTenant] no active session")
	}

	f.reset()
	f.email = sess.Email
	f.switching = true

	res, err := f.deps.Resolver.Resolve(ctx, f.email)
	if err != nil {
		if gateway.IsCode(err, gateway.CodeTenantNotFound) {
			f.setState(StateFailed)
		}
		return session.Session{}, err
	}
	if res.RequiresSelection {
		f.options = res.Tenants
	} else if res.Tenant != nil {
		f.options = []tenants.Tenant{*res.Tenant}
	}
	f.setState(StateTenantSelect)
	return f.run(ctx)
}

func (f *Flow) reset() {
	f.state = StateEmail
	f.email = ""
	f.tenant = nil
	f.options = nil
	f.notice = ""
	f.seeded = false
	f.switching = false
	f.result = session.Session{}
}

func (f *Flow) setState(next State) {
	if f.state != next {
		f.log.Debug().Str("from", string(f.state)).Str("to", string(next)).Msg("login flow transition")
	}
	f.state = next
}

// run drives the machine until a terminal state. Every failure either
// advances to a defined fallback state or re-displays the current step
// with a notice; nothing aborts silently.
func (f *Flow) run(ctx context.Context) (session.Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			f.setState(StateCancelled)
			return session.Session{}, ErrCancelled
		}

		var err error
		switch f.state {
		case StateEmail:
			err = f.stepEmail(ctx)
		case StateTenantSelect:
			err = f.stepTenantSelect(ctx)
		case StateSilentReauth:
			err = f.stepSilentReauth(ctx)
		case StateCredentials:
			err = f.stepCredentials(ctx)
		case StateAuthenticated:
			return f.result, nil
		case StateCancelled:
			return session.Session{}, ErrCancelled
		case StateFailed:
			return session.Session{}, errors.New("login failed")
		default:
			return session.Session{}, errors.Errorf("[flow] unknown state %q", f.state)
		}
		if err != nil {
			return session.Session{}, err
		}
	}
}

func (f *Flow) stepEmail(ctx context.Context) error {
	email := f.email
	if !f.seeded {
		entered, err := f.ui.PromptEmail(ctx, f.takeNotice())
		if err != nil {
			return f.userErr(err)
		}
		email = entered
	}
	f.seeded = false

	if _, err := tenants.DomainFromEmail(email); err != nil {
		f.notice = NoticeInvalidEmail
		return nil
	}
	f.email = email

	res, err := f.deps.Resolver.Resolve(ctx, email)
	if err != nil {
		if gateway.IsCode(err, gateway.CodeTenantNotFound) {
			// Terminal: the domain has no configured organization and
			// retrying cannot change that.
			f.setState(StateFailed)
			return err
		}
		f.notice = NoticeTryAgain
		return nil
	}

	if res.RequiresSelection {
		f.options = res.Tenants
		f.setState(StateTenantSelect)
		return nil
	}
	f.tenant = res.Tenant
	f.decideCredentialStep()
	return nil
}

func (f *Flow) stepTenantSelect(ctx context.Context) error {
	chosen, err := f.ui.SelectTenant(ctx, f.options)
	if err != nil {
		if errors.Is(err, ErrBack) {
			if f.switching {
				// Backing out of a tenant change leaves the current
				// session untouched.
				f.setState(StateCancelled)
				return nil
			}
			f.setState(StateEmail)
			return nil
		}
		return f.userErr(err)
	}
	f.tenant = &chosen

	if f.switching {
		sess, err := f.deps.Gateway.SwitchTenant(ctx, f.email, chosen.ID)
		if err == nil {
			return f.finish(sess)
		}
		f.log.Info().Err(err).Int("tenant_id", chosen.ID).Msg("tenant switch fell back to credentials")
		if gateway.IsRejection(err) {
			f.notice = NoticeCredentialsExpired
		} else {
			f.notice = NoticeTryAgain
		}
		f.setState(StateCredentials)
		return nil
	}

	f.decideCredentialStep()
	return nil
}

// decideCredentialStep picks silent re-auth when a trusted credential
// exists for this email, the interactive form otherwise. Not a visible
// UI state.
func (f *Flow) decideCredentialStep() {
	if _, ok, err := f.deps.Credentials.Load(f.email); err == nil && ok && f.deps.Credentials.RegistrationComplete() {
		f.setState(StateSilentReauth)
		return
	}
	f.setState(StateCredentials)
}

func (f *Flow) stepSilentReauth(ctx context.Context) error {
	cred, ok, err := f.deps.Credentials.Load(f.email)
	if err != nil || !ok {
		f.setState(StateCredentials)
		return nil
	}

	sess, err := f.deps.Gateway.Register(ctx, f.email, cred.Username, cred.Secret, f.tenantID())
	if err == nil {
		f.log.Info().Str("email", f.email).Msg("silent re-auth succeeded")
		return f.finish(sess)
	}

	if _, rejected := gateway.CodeOf(err); rejected {
		// The backend saw the credential and said no: it is known-bad
		// now, and keeping it would retry a dead credential forever.
		if clearErr := f.deps.Credentials.Clear(); clearErr != nil {
			f.log.Error().Err(clearErr).Msg("failed to clear rejected credential")
		}
		if gateway.IsRejection(err) {
			f.notice = NoticeCredentialsExpired
		}
	} else {
		// Transport failure: the credential was never judged, so it
		// stays. One automatic fallback to the interactive form, no
		// silent retry loop.
		f.notice = NoticeTryAgain
	}
	f.setState(StateCredentials)
	return nil
}

func (f *Flow) stepCredentials(ctx context.Context) error {
	tenant := tenants.Tenant{}
	if f.tenant != nil {
		tenant = *f.tenant
	}

	username, secret, err := f.ui.PromptCredentials(ctx, f.email, tenant, f.takeNotice())
	if err != nil {
		if errors.Is(err, ErrBack) {
			if len(f.options) > 1 {
				f.setState(StateTenantSelect)
			} else {
				f.setState(StateEmail)
			}
			return nil
		}
		return f.userErr(err)
	}

	sess, err := f.deps.Gateway.Register(ctx, f.email, username, secret, f.tenantID())
	if err != nil {
		if gateway.IsRejection(err) {
			f.notice = NoticeInvalidCredentials
		} else {
			f.notice = NoticeTryAgain
		}
		// Remain on the form; there is no client-side attempt limit.
		return nil
	}

	if err := f.deps.Credentials.Save(f.email, username, secret); err != nil {
		// A failed cache write costs future silent re-auth, not this
		// login.
		f.log.Error().Err(err).Msg("failed to cache credential")
	}
	return f.finish(sess)
}

func (f *Flow) finish(sess session.Session) error {
	if f.tenant != nil && sess.TenantName == "" {
		sess.TenantName = f.tenant.Name
	}
	if err := f.deps.Sessions.Set(sess); err != nil {
		return errors.Wrap(err, "[flow] persist session")
	}
	f.result = sess
	f.setState(StateAuthenticated)
	return nil
}

func (f *Flow) tenantID() *int {
	if f.tenant == nil {
		return nil
	}
	return utils.Ptr(f.tenant.ID)
}

func (f *Flow) takeNotice() string {
	n := f.notice
	f.notice = ""
	return n
}

// userErr maps a prompt error to the flow outcome: cancellation is a
// defined terminal state, anything else surfaces to the caller.
func (f *Flow) userErr(err error) error {
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		f.setState(StateCancelled)
		return ErrCancelled
	}
	return err
}
