package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Code identifies one outcome of the closed error taxonomy the backend
// and the interceptor surface to the login flow. Everything the flow
// branches on is a Code; raw transport errors never reach it.
type Code string

const (
	// CodeTenantNotFound: the email domain has no configured
	// organization. Terminal for the flow; the user must contact an
	// administrator.
	CodeTenantNotFound Code = "TENANT_NOT_FOUND"

	// The four registration/login rejections. They all drive the same
	// transition: fall through to interactive credential entry.
	CodeNoStoredCredentials        Code = "NO_STORED_CREDENTIALS"
	CodeUserNotFound               Code = "USER_NOT_FOUND"
	CodeCredentialDecryptionFailed Code = "CREDENTIAL_DECRYPTION_FAILED"
	CodeStoredCredentialsInvalid   Code = "STORED_CREDENTIALS_INVALID"

	// CodeAuthRequired is synthetic: raised client-side when a non-auth
	// call returns 401, meaning the session is gone and the flow must
	// restart.
	CodeAuthRequired Code = "AUTH_REQUIRED"
)

// Error is a backend rejection normalized into the closed taxonomy.
type Error struct {
	Code    Code
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.Status, e.Message)
}

// CodeOf extracts the taxonomy code from an error chain.
func CodeOf(err error) (Code, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsRejection reports whether err is a credential rejection (a 401 from
// an auth endpoint), as opposed to a transport failure.
func IsRejection(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Status == http.StatusUnauthorized
}

var knownCodes = map[Code]bool{
	CodeTenantNotFound:             true,
	CodeNoStoredCredentials:        true,
	CodeUserNotFound:               true,
	CodeCredentialDecryptionFailed: true,
	CodeStoredCredentialsInvalid:   true,
}

type errorBody struct {
	Detail string `json:"detail"`
	Err    string `json:"error"`
}

// FromResponse normalizes a non-2xx auth/resolve response. The backend
// reports its code in the X-Error-Code header, repeating it (or a human
// message) in the body's detail field; fallback covers responses that
// predate the header. Statuses outside 401/404 are not part of the
// taxonomy and come back as plain errors, which the flow treats as
// generic failures that keep it in its current state.
func FromResponse(resp *http.Response, fallback Code) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))

	var body errorBody
	_ = json.Unmarshal(raw, &body)
	message := body.Detail
	if message == "" {
		message = body.Err
	}

	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
		return errors.Errorf("backend returned status %d: %s", resp.StatusCode, message)
	}

	code := Code(resp.Header.Get("X-Error-Code"))
	if !knownCodes[code] {
		if knownCodes[Code(body.Detail)] {
			code = Code(body.Detail)
		} else {
			code = fallback
		}
	}

	return &Error{Code: code, Status: resp.StatusCode, Message: message}
}
