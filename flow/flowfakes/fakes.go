// Package flowfakes provides scriptable fakes for the login flow's
// collaborators.
package flowfakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/attachly/go-attach-client/flow"
	"github.com/attachly/go-attach-client/session"
	"github.com/attachly/go-attach-client/tenants"
)

var _ flow.Resolver = (*FakeResolver)(nil)

type FakeResolver struct {
	ResolveFn func(ctx context.Context, email string) (tenants.Resolution, error)

	lock         sync.Mutex
	ResolveCalls []string
}

func (r *FakeResolver) Resolve(ctx context.Context, email string) (tenants.Resolution, error) {
	r.lock.Lock()
	r.ResolveCalls = append(r.ResolveCalls, email)
	r.lock.Unlock()
	if r.ResolveFn == nil {
		return tenants.Resolution{}, errors.New("no ResolveFn configured")
	}
	return r.ResolveFn(ctx, email)
}

var _ flow.Gateway = (*FakeGateway)(nil)

type RegisterCall struct {
	Email    string
	Username string
	Secret   string
	TenantID *int
}

type SwitchCall struct {
	Email    string
	TenantID int
}

type FakeGateway struct {
	LoginFn        func(ctx context.Context, email string, tenantID *int) (session.Session, error)
	RegisterFn     func(ctx context.Context, email, username, secret string, tenantID *int) (session.Session, error)
	SwitchTenantFn func(ctx context.Context, email string, tenantID int) (session.Session, error)

	lock          sync.Mutex
	LoginCalls    []string
	RegisterCalls []RegisterCall
	SwitchCalls   []SwitchCall
}

func (g *FakeGateway) Login(ctx context.Context, email string, tenantID *int) (session.Session, error) {
	g.lock.Lock()
	g.LoginCalls = append(g.LoginCalls, email)
	g.lock.Unlock()
	if g.LoginFn == nil {
		return session.Session{}, errors.New("no LoginFn configured")
	}
	return g.LoginFn(ctx, email, tenantID)
}

func (g *FakeGateway) Register(ctx context.Context, email, username, secret string, tenantID *int) (session.Session, error) {
	g.lock.Lock()
	g.RegisterCalls = append(g.RegisterCalls, RegisterCall{Email: email, Username: username, Secret: secret, TenantID: tenantID})
	g.lock.Unlock()
	if g.RegisterFn == nil {
		return session.Session{}, errors.New("no RegisterFn configured")
	}
	return g.RegisterFn(ctx, email, username, secret, tenantID)
}

func (g *FakeGateway) SwitchTenant(ctx context.Context, email string, tenantID int) (session.Session, error) {
	g.lock.Lock()
	g.SwitchCalls = append(g.SwitchCalls, SwitchCall{Email: email, TenantID: tenantID})
	g.lock.Unlock()
	if g.SwitchTenantFn == nil {
		return session.Session{}, errors.New("no SwitchTenantFn configured")
	}
	return g.SwitchTenantFn(ctx, email, tenantID)
}

var _ flow.UI = (*FakeUI)(nil)

// EmailReply scripts one answer to the email prompt.
type EmailReply struct {
	Email string
	Err   error
}

// SelectReply scripts one answer to the tenant picker; Index is
// zero-based into the offered options.
type SelectReply struct {
	Index int
	Err   error
}

// CredReply scripts one answer to the credential form.
type CredReply struct {
	Username string
	Secret   string
	Err      error
}

// FakeUI replays scripted answers and records what each prompt was
// shown. An exhausted script cancels, so a looping flow cannot hang a
// test.
type FakeUI struct {
	EmailReplies  []EmailReply
	SelectReplies []SelectReply
	CredReplies   []CredReply

	lock          sync.Mutex
	EmailNotices  []string
	OfferedByCall [][]tenants.Tenant
	CredNotices   []string
	CredPrompts   []string // emails the credential form was shown for
}

func (u *FakeUI) PromptEmail(ctx context.Context, notice string) (string, error) {
	u.lock.Lock()
	u.EmailNotices = append(u.EmailNotices, notice)
	if len(u.EmailReplies) == 0 {
		u.lock.Unlock()
		return "", flow.ErrCancelled
	}
	reply := u.EmailReplies[0]
	u.EmailReplies = u.EmailReplies[1:]
	u.lock.Unlock()
	return reply.Email, reply.Err
}

func (u *FakeUI) SelectTenant(ctx context.Context, options []tenants.Tenant) (tenants.Tenant, error) {
	u.lock.Lock()
	u.OfferedByCall = append(u.OfferedByCall, options)
	if len(u.SelectReplies) == 0 {
		u.lock.Unlock()
		return tenants.Tenant{}, flow.ErrCancelled
	}
	reply := u.SelectReplies[0]
	u.SelectReplies = u.SelectReplies[1:]
	u.lock.Unlock()
	if reply.Err != nil {
		return tenants.Tenant{}, reply.Err
	}
	return options[reply.Index], nil
}

func (u *FakeUI) PromptCredentials(ctx context.Context, email string, tenant tenants.Tenant, notice string) (string, string, error) {
	u.lock.Lock()
	u.CredNotices = append(u.CredNotices, notice)
	u.CredPrompts = append(u.CredPrompts, email)
	if len(u.CredReplies) == 0 {
		u.lock.Unlock()
		return "", "", flow.ErrCancelled
	}
	reply := u.CredReplies[0]
	u.CredReplies = u.CredReplies[1:]
	u.lock.Unlock()
	return reply.Username, reply.Secret, reply.Err
}
