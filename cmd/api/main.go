package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"securelogin/internal/auth"
	"securelogin/internal/biometric"
	"securelogin/internal/config"
	"securelogin/internal/httpapi"
	"securelogin/internal/identity"
	"securelogin/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	// Postgres when a DSN is configured; in-memory otherwise so the
	// service still runs for local development.
	var db *sql.DB
	if cfg.PGDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	var (
		roles       auth.RoleStore
		factors     auth.FactorStore
		auditSink   auth.AuditSink
		auditReader auth.AuditReader
		idStore     identity.Store
	)
	if db != nil {
		roles = auth.NewPGRoleStore(db)
		factors = auth.NewPGFactorStore(db)
		pgAudit := auth.NewPGAuditLog(db)
		auditSink = pgAudit
		auditReader = pgAudit
		idStore = identity.NewPGStore(db)
	} else {
		log.Println("no SECURELOGIN_PG_DSN set, using in-memory stores")
		roles = auth.NewMemRoleStore()
		factors = auth.NewMemFactorStore()
		memAudit := auth.NewMemAuditSink()
		auditSink = memAudit
		auditReader = memAudit
		idStore = identity.NewMemStore()
	}

	idp, err := identity.New(idStore, cfg.SessionSecret, identity.WithSessionTTL(cfg.SessionTTL))
	if err != nil {
		log.Fatalf("identity provider: %v", err)
	}

	totp := auth.NewTOTPEngine(cfg.TOTPIssuer, auth.WithTOTPDigits(cfg.TOTPDigits))
	gateway := biometric.New(cfg.BiometricEnabled)

	orch, err := auth.NewOrchestrator(idp, roles, factors, auditSink, gateway, totp,
		auth.WithStoreTimeout(cfg.StoreTimeout),
		auth.WithLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow),
	)
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}

	policy := auth.DefaultPolicy()
	if cfg.PolicyPath != "" {
		policy, err = auth.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			log.Fatalf("load policy: %v", err)
		}
	}
	gate, err := auth.NewGate(roles, auditSink,
		auth.WithGatePolicy(policy),
		auth.WithGateTimeout(cfg.StoreTimeout),
	)
	if err != nil {
		log.Fatalf("access gate: %v", err)
	}

	api := httpapi.New(orch, gate, idp, idp, auditReader, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting securelogin-api %s on %s", version, srv.Addr)

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
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
