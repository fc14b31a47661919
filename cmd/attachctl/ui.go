package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/attachly/go-attach-client/flow"
	"github.com/attachly/go-attach-client/tenants"
)

// terminalUI renders the login flow's steps on stdin/stdout. Typing
// "back" at any prompt navigates back a step; EOF (Ctrl-D) cancels.
type terminalUI struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalUI() *terminalUI {
	return &terminalUI{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (u *terminalUI) PromptEmail(ctx context.Context, notice string) (string, error) {
	u.showNotice(notice)
	return u.readLine(ctx, "Email: ")
}

func (u *terminalUI) SelectTenant(ctx context.Context, options []tenants.Tenant) (tenants.Tenant, error) {
	fmt.Fprintln(u.out, "Your email belongs to more than one organization:")
	for i, t := range options {
		fmt.Fprintf(u.out, "  %d) %s\n", i+1, t.Name)
	}
	for {
		answer, err := u.readLine(ctx, "Select organization: ")
		if err != nil {
			return tenants.Tenant{}, err
		}
		n, convErr := strconv.Atoi(answer)
		if convErr != nil || n < 1 || n > len(options) {
			fmt.Fprintln(u.out, "Please enter one of the listed numbers.")
			continue
		}
		return options[n-1], nil
	}
}

func (u *terminalUI) PromptCredentials(ctx context.Context, email string, tenant tenants.Tenant, notice string) (string, string, error) {
	u.showNotice(notice)
	if tenant.Name != "" {
		fmt.Fprintf(u.out, "Signing in to %s as %s\n", tenant.Name, email)
	}

	username, err := u.readLine(ctx, "Organization username: ")
	if err != nil {
		return "", "", err
	}

	fmt.Fprint(u.out, "Organization password or token: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(u.out)
	if err != nil {
		return "", "", flow.ErrCancelled
	}
	return username, string(secret), nil
}

func (u *terminalUI) showNotice(notice string) {
	if notice != "" {
		fmt.Fprintln(u.out, notice)
	}
}

func (u *terminalUI) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", flow.ErrCancelled
	}
	fmt.Fprint(u.out, prompt)
	line, err := u.in.ReadString('\n')
	if err != nil {
		return "", flow.ErrCancelled
	}
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "back") {
		return "", flow.ErrBack
	}
	return line, nil
}

var _ flow.UI = (*terminalUI)(nil)
