// Command squishd is the long-running control daemon: it owns the
// registry, the supervisor's spawn pipeline, the reaper, and the
// Control API (mux), matching spec.md §2's component D/E/F split.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/queer/squish/daemonconfig"
	"github.com/queer/squish/logging"
	"github.com/queer/squish/mux"
	"github.com/queer/squish/pool"
	"github.com/queer/squish/reaper"
	"github.com/queer/squish/registry"
	"github.com/queer/squish/supervisor"
	"github.com/queer/squish/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to squishd.yaml (default "+daemonconfig.DefaultPath+")")
	logPath := flag.String("log-file", "/var/log/squishd/squishd.log", "daemon log file path")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	if env := os.Getenv("SQUISHD_LOG_FILE"); env != "" {
		*logPath = env
	}

	logger := logging.NewDaemonLogger(logging.DaemonOptions{Path: *logPath, Level: *logLevel})
	slog.SetDefault(logger)

	cfg, err := daemonconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "squishd: load config: %v\n", err)
		os.Exit(1)
	}
	if env := os.Getenv("SQUISHD_OTLP_ENDPOINT"); env != "" {
		cfg.OTLPEndpoint = env
	}

	if err := run(cfg); err != nil {
		slog.Error("squishd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg daemonconfig.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "squishd", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("squishd: telemetry setup: %w", err)
	}
	defer shutdownTracing(context.Background())

	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return fmt.Errorf("squishd: mkdir base dir: %w", err)
	}

	store, err := registry.OpenStore(filepath.Join(cfg.BaseDir, "squish.db"))
	if err != nil {
		return fmt.Errorf("squishd: open store: %w", err)
	}
	defer store.Close()

	survivors, err := store.Reconcile(registry.ProcAlive)
	if err != nil {
		return fmt.Errorf("squishd: reconcile store: %w", err)
	}

	reg := registry.New(cfg.BaseDir, store)
	for _, c := range survivors {
		reg.Seed(c)
		slog.Info("squishd: reconciled surviving container", "id", c.ID, "pid", c.PID)
	}

	fetcher := supervisor.NewImageFetcher(filepath.Join(cfg.BaseDir, "cache"))
	super := supervisor.New(reg, fetcher, cfg.Pid1Binary, cfg.SlirpBinary, cfg.BaseDir)

	r := reaper.New(reg, reaper.ProcExists)
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		r.Run(ctx, tickOrDefault(cfg.ReaperTick))
	}()

	spawnPool := pool.NewSpawnPool(maxConcurrentSpawnsOrDefault(cfg.MaxConcurrentSpawns))

	server := &mux.Server{
		// LockPath is derived from SocketPath, not BaseDir: the CLI only
		// ever knows the socket path (it has no view of the daemon's
		// base dir), and needs to find this file to recover squishd's
		// pid for "squish daemon stop".
		SocketPath: cfg.SocketPath,
		LockPath:   cfg.SocketPath + ".lock",
		Registry:   reg,
		Supervisor: super,
		SpawnPool:  spawnPool,
	}
	defer spawnPool.Shutdown()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ServeUnix(ctx) }()

	select {
	case err := <-serveErr:
		cancel()
		<-reaperDone
		return err
	case <-ctx.Done():
		<-reaperDone
		return nil
	}
}

func tickOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return reaper.Tick
	}
	return d
}

func maxConcurrentSpawnsOrDefault(n int) int {
	if n <= 0 {
		return 8
	}
	return n
}
