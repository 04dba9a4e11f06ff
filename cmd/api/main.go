package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treasura.org/internal/access"
	"treasura.org/internal/auth"
	"treasura.org/internal/directory"
	"treasura.org/internal/exposure"
	"treasura.org/internal/hierarchy"
	"treasura.org/internal/httpapi"
	"treasura.org/internal/obs"
	"treasura.org/internal/session"
	"treasura.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	dsn := os.Getenv("TREASURA_PG_DSN")
	if dsn == "" {
		log.Fatal("missing TREASURA_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	entities, err := hierarchy.NewService(store.Entities())
	if err != nil {
		log.Fatalf("hierarchy service: %v", err)
	}
	permissions, err := access.NewResolver(store.Permissions())
	if err != nil {
		log.Fatalf("permission resolver: %v", err)
	}
	scope, err := access.NewScopeResolver(store.Scope(), entities)
	if err != nil {
		log.Fatalf("scope resolver: %v", err)
	}
	users, err := directory.NewUserService(store.Users())
	if err != nil {
		log.Fatalf("user service: %v", err)
	}
	roles, err := directory.NewRoleService(store.Roles())
	if err != nil {
		log.Fatalf("role service: %v", err)
	}
	exposures, err := exposure.NewService(store.Exposures())
	if err != nil {
		log.Fatalf("exposure service: %v", err)
	}
	sessions := session.NewDirectory()
	authSvc, err := auth.NewService(store.Users(), sessions)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Services{
		Auth:        authSvc,
		Entities:    entities,
		Permissions: permissions,
		Scope:       scope,
		Users:       users,
		Roles:       roles,
		Exposures:   exposures,
		Sessions:    sessions,
	})

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, 8<<20)
	handler = httpapi.RateLimit(handler, 50, 25)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	addr := os.Getenv("TREASURA_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting treasura-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
