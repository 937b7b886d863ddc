package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shourjoguha/alloy/internal/assembly"
	"github.com/shourjoguha/alloy/internal/catalog"
	"github.com/shourjoguha/alloy/internal/config"
	"github.com/shourjoguha/alloy/internal/jobs"
	"github.com/shourjoguha/alloy/internal/optimizer"
	"github.com/shourjoguha/alloy/internal/planner"
	"github.com/shourjoguha/alloy/internal/progress"
	"github.com/shourjoguha/alloy/internal/sequencer"
	"github.com/shourjoguha/alloy/internal/server"
	"github.com/shourjoguha/alloy/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("Alloy starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Generation.Snapshot()

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Jobs left running by a previous process go back to the queue.
	if n, err := db.RequeueStaleJobs(ctx); err != nil {
		log.Warn("requeue of stale jobs failed", "error", err)
	} else if n > 0 {
		log.Info("requeued stale jobs", "count", n)
	}

	if err := seedCatalog(ctx, db, log); err != nil {
		log.Error("catalog seed failed", "error", err)
		os.Exit(1)
	}

	// Collaborators
	var opt optimizer.Optimizer = optimizer.Disabled{}
	if cfg.Optimizer.URL != "" {
		opt = optimizer.NewHTTPClient(cfg.Optimizer.URL, cfg.Optimizer.Timeout, cfg.Optimizer.MaxRetries, log)
		log.Info("optimizer enabled", "url", cfg.Optimizer.URL)
	}

	var pub progress.Publisher = progress.Nop{}
	if cfg.Redis.Addr != "" {
		rp, err := progress.NewRedis(cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err != nil {
			log.Warn("progress events disabled", "error", err)
		} else {
			defer rp.Close()
			pub = rp
			log.Info("progress events enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
		}
	}

	asm := assembly.New(db, opt, snap, log)
	seq := sequencer.New(db, asm, db, snap, pub, log)
	runner := jobs.NewRunner(seq, db, db, log)
	pool := jobs.NewPool(db, runner, cfg.Generation.Workers, log)

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		if err := pool.Run(ctx); err != nil {
			log.Error("job pool stopped", "error", err)
		}
	}()

	sweep := jobs.NewScheduler(db, db, cfg.Generation.SweepSchedule, log)
	if err := sweep.Start(ctx); err != nil {
		log.Error("sweep schedule invalid", "error", err)
		os.Exit(1)
	}

	// Create server
	svc := planner.New(db, db, snap, log)
	srv := server.New(svc, db, jobs.NewRemediator(db, db), cfg.Auth.APIKey, log)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	sweep.Stop()
	stop()
	select {
	case <-poolDone:
	case <-shutdownCtx.Done():
		log.Warn("job workers did not stop in time")
	}
	log.Info("server stopped")
}

// seedCatalog loads the built-in movements into an empty catalog table.
func seedCatalog(ctx context.Context, db *storage.DB, log *slog.Logger) error {
	n, err := db.MovementCount(ctx)
	if err != nil {
		return fmt.Errorf("counting movements: %w", err)
	}
	if n > 0 {
		log.Info("movement catalog loaded", "movements", n)
		return nil
	}
	res, err := catalog.NewProvider(db, log).Ingest(ctx, bytes.NewReader(catalog.SeedYAML()))
	if err != nil {
		return err
	}
	log.Info("movement catalog seeded", "inserted", res.Inserted, "rejected", res.Rejected)
	return nil
}
