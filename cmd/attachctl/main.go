// attachctl is a terminal surface over the shared attachment-client
// core: it drives the same login flow, session store, and credential
// vault the graphical surfaces use, against the same on-device state.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/attachly/go-attach-client/flow"
	"github.com/attachly/go-attach-client/gateway"
	"github.com/attachly/go-attach-client/internal/config"
	"github.com/attachly/go-attach-client/kvstore"
	"github.com/attachly/go-attach-client/session"
	"github.com/attachly/go-attach-client/tenants"
	"github.com/attachly/go-attach-client/transport"
	"github.com/attachly/go-attach-client/vault"
)

const usage = `Usage: attachctl <command>

Commands:
  login          Sign in (silently when this device is trusted)
  logout         Clear the session and the cached credential
  whoami         Show the active session, locally and per the backend
  switch-tenant  Move the active session to another organization
  reauth         Re-enter organization credentials for the active session
`

type app struct {
	cfg      config.Config
	log      zerolog.Logger
	kv       kvstore.Store
	sessions *session.Store
	vault    *vault.Vault
	flow     *flow.Flow
	http     *http.Client
	baseURL  string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "attachctl:", err)
		os.Exit(1)
	}
	defer a.kv.Close()

	if err := a.dispatch(ctx, os.Args[1]); err != nil {
		if errors.Is(err, flow.ErrCancelled) {
			fmt.Println("Cancelled.")
			return
		}
		fmt.Fprintln(os.Stderr, "attachctl:", err)
		os.Exit(1)
	}
}

func newApp() (*app, error) {
	cfg := config.New()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.GetEnv() == "DEV" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.WarnLevel)
	}

	kv, err := kvstore.NewFile(cfg.GetDataFolder(),
		kvstore.WithWatchInterval(time.Duration(cfg.GetWatchIntervalMillis())*time.Millisecond),
		kvstore.WithFileLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(kv, session.WithLogger(logger))

	vaultOpts := []vault.Option{vault.WithLogger(logger)}
	if key := cfg.GetVaultSealKey(); key != "" {
		vaultOpts = append(vaultOpts, vault.WithCodec(vault.NewSealedCodec(key)))
	}
	vlt := vault.New(kv, vaultOpts...)

	httpClient := &http.Client{Timeout: time.Duration(cfg.GetHTTPTimeoutSeconds()) * time.Second}
	resolver := tenants.NewResolver(cfg.GetAPIBaseURL(), tenants.WithHTTPClient(httpClient), tenants.WithLogger(logger))
	gw := gateway.New(cfg.GetAPIBaseURL(), gateway.WithHTTPClient(httpClient), gateway.WithLogger(logger))

	fl, err := flow.New(flow.Deps{
		Resolver:    resolver,
		Gateway:     gw,
		Sessions:    sessions,
		Credentials: vlt,
	}, newTerminalUI(), flow.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	interceptor := transport.New(sessions, nil, transport.WithLogger(logger))
	authedClient := interceptor.Client()
	authedClient.Timeout = time.Duration(cfg.GetHTTPTimeoutSeconds()) * time.Second

	return &app{
		cfg:      cfg,
		log:      logger,
		kv:       kv,
		sessions: sessions,
		vault:    vlt,
		flow:     fl,
		http:     authedClient,
		baseURL:  cfg.GetAPIBaseURL(),
	}, nil
}

func (a *app) dispatch(ctx context.Context, command string) error {
	switch command {
	case "login":
		displayAppname(a.cfg.GetAppName())
		return a.login(ctx)
	case "logout":
		return a.logout()
	case "whoami":
		return a.whoami(ctx)
	case "switch-tenant":
		return a.switchTenant(ctx)
	case "reauth":
		return a.reauth(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Errorf("unknown command: %s", command)
	}
}

func (a *app) login(ctx context.Context) error {
	sess, err := a.flow.Run(ctx)
	if err != nil {
		if gateway.IsCode(err, gateway.CodeTenantNotFound) {
			fmt.Println("Your email domain is not set up for this product. Please contact your administrator.")
			return nil
		}
		return err
	}
	fmt.Printf("Signed in to %s as %s\n", sess.TenantName, sess.Email)
	return nil
}

func (a *app) logout() error {
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	if err := a.vault.Clear(); err != nil {
		return err
	}
	fmt.Println("Signed out. This device is no longer trusted.")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	sess, ok, err := a.sessions.Get()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("Local session: %s @ %s (tenant %d)\n", sess.Email, sess.TenantName, sess.TenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/me", nil)
	if err != nil {
		return err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		if gateway.IsCode(err, gateway.CodeAuthRequired) {
			fmt.Println("Backend: session expired, run `attachctl login`.")
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		pretty.Write(body)
	}
	fmt.Printf("Backend: %s\n", pretty.String())
	return nil
}

func (a *app) switchTenant(ctx context.Context) error {
	sess, err := a.flow.ChangeTenant(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Switched to %s (tenant %d)\n", sess.TenantName, sess.TenantID)
	return nil
}

func (a *app) reauth(ctx context.Context) error {
	sess, err := a.flow.ReenterCredentials(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Credentials updated for %s\n", sess.Email)
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
