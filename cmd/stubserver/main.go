package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/attachly/go-attach-client/internal/config"
	"github.com/attachly/go-attach-client/stubserver"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname("Attachly Stub")

	store := stubserver.NewMemoryStore()
	seedTenants(store)

	server := &http.Server{Addr: c.GetPort(), Handler: stubserver.New(c, c, store)}
	go listenAndServe(server)
	waitForStopSignal()
	returnError = shutdown(server)
	return returnError
}

// seedTenants loads a development data set: one single-tenant domain
// and one domain shared by two tenants, so both resolution outcomes can
// be exercised.
func seedTenants(store *stubserver.MemoryStore) {
	store.AddTenant(stubserver.Tenant{ID: 1, Name: "Acme Industries", Domains: []string{"acme.test"}, Active: true})
	store.AddTenant(stubserver.Tenant{ID: 2, Name: "Globex North", Domains: []string{"globex.test"}, Active: true})
	store.AddTenant(stubserver.Tenant{ID: 3, Name: "Globex South", Domains: []string{"globex.test"}, Active: true})
	log.Println("Seeded tenants: acme.test -> 1, globex.test -> {2, 3}")
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
