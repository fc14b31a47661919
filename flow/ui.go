package flow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/attachly/go-attach-client/tenants"
)

// Sentinel results a UI implementation returns from its prompts.
var (
	// ErrCancelled: the user closed the dialog. The flow resolves to
	// its cancelled outcome and returns control without a session.
	ErrCancelled = errors.New("login cancelled")

	// ErrBack: the user navigated back one step. Going back resets flow
	// progress only; it never clears an already-established session.
	ErrBack = errors.New("back")
)

// User-facing notices the flow passes back into prompts. Surfaces may
// localize them; tests assert on the constants.
const (
	NoticeInvalidEmail       = "Please enter a valid email address."
	NoticeCredentialsExpired = "Your stored credentials have expired. Please sign in again."
	NoticeInvalidCredentials = "Invalid organization credentials. Please try again."
	NoticeTryAgain           = "Something went wrong. Please try again."
)

// UI is the surface-side contract: each method renders one step of the
// flow and blocks (cooperatively) until the user answers. The flow
// stays responsive to cancellation through ctx; implementations should
// also return ErrCancelled when the user dismisses the step.
type UI interface {
	// PromptEmail renders the email entry step. notice is empty on
	// first display and carries the previous failure otherwise.
	PromptEmail(ctx context.Context, notice string) (string, error)

	// SelectTenant renders the tenant picker with the resolved
	// candidates and returns the chosen one.
	SelectTenant(ctx context.Context, options []tenants.Tenant) (tenants.Tenant, error)

	// PromptCredentials renders the interactive organization login form
	// for the given email and tenant.
	PromptCredentials(ctx context.Context, email string, tenant tenants.Tenant, notice string) (username, secret string, err error)
}
