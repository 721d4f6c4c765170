package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docvault.org/internal/auth"
	"docvault.org/internal/blob"
	"docvault.org/internal/config"
	"docvault.org/internal/docs"
	"docvault.org/internal/httpapi"
	"docvault.org/internal/mail"
	"docvault.org/internal/obs"
	"docvault.org/internal/spsync"
	"docvault.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	tokens, err := auth.NewTokenService(cfg.AuthSecret,
		auth.WithIssuer(cfg.AuthIssuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("init token service: %v", err)
	}

	var authOpts []auth.ServiceOption
	if cfg.SMTP.Enabled() {
		authOpts = append(authOpts, auth.WithNotifier(mail.New(cfg.SMTP)))
	}
	authSvc, err := auth.NewService(store, tokens, authOpts...)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}
	rbacSvc, err := auth.NewRBACService(store)
	if err != nil {
		log.Fatalf("init rbac service: %v", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authSvc.EnsureBuiltins(startupCtx); err != nil {
		cancelStartup()
		log.Fatalf("ensure permission catalog: %v", err)
	}
	cancelStartup()

	blobs, err := blob.NewLocal(cfg.UploadDir)
	if err != nil {
		log.Fatalf("init blob storage: %v", err)
	}
	docSvc, err := docs.NewService(store, blobs)
	if err != nil {
		log.Fatalf("init document service: %v", err)
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	var syncWorker *spsync.Worker
	if cfg.SharePoint.Enabled() {
		syncWorker, err = spsync.New(cfg.SharePoint, blobs)
		if err != nil {
			log.Fatalf("init sharepoint sync: %v", err)
		}
		go syncWorker.Run(workerCtx)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, authSvc, rbacSvc, docSvc, syncWorker,
		httpapi.WithEnv(cfg.Env),
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting docvault-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	stopWorker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
