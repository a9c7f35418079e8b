package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/evanofslack/adguard-dns-sync/internal/config"
	"github.com/evanofslack/adguard-dns-sync/internal/logger"
	"github.com/evanofslack/adguard-dns-sync/internal/metrics"
	"github.com/evanofslack/adguard-dns-sync/internal/provider"
	"github.com/evanofslack/adguard-dns-sync/internal/provider/adguard"
	"github.com/evanofslack/adguard-dns-sync/internal/provider/cloudflare"
	"github.com/evanofslack/adguard-dns-sync/internal/reconcile"
	"github.com/evanofslack/adguard-dns-sync/internal/source/traefik"
	"github.com/evanofslack/adguard-dns-sync/internal/trigger"
	"github.com/evanofslack/adguard-dns-sync/internal/verify"
	"github.com/evanofslack/adguard-dns-sync/internal/watcher"
)

func main() {
	app := &cli.App{
		Name:  "adguard-dns-sync",
		Usage: "Keep AdGuard Home DNS rewrites in sync with Traefik router hosts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML config file",
			},
		},
		Action: runService,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Sync on startup, then on every change of the routing file",
				Action: runService,
			},
			{
				Name:   "sync",
				Usage:  "Run a single sync and exit",
				Action: runOnce,
			},
			{
				Name:   "hosts",
				Usage:  "Print the hosts found in the routing file",
				Action: printHosts,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context, validate bool) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func runService(c *cli.Context) error {
	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}

	// Initialize metrics
	metrics := metrics.New(true)

	engine, err := newEngine(cfg, metrics)
	if err != nil {
		return err
	}

	queue := trigger.New(cfg.SettleDelay, metrics)
	fileWatcher, err := watcher.New(cfg.Traefik.DynamicConfig(), queue)
	if err != nil {
		return err
	}

	// Set up HTTP server for metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:    cfg.Metrics.Addr,
		Handler: mux,
	}

	// Start http server in background
	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	slog.Info("Starting adguard-dns-sync service",
		"provider", cfg.DNS.Provider,
		"target", cfg.DNS.Target,
		"routing_file", cfg.Traefik.DynamicConfig(),
		"dry_run", cfg.Reconcile.DryRun)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fileWatcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("File watcher stopped", "error", err)
		}
	}()

	if cfg.SyncInterval > 0 {
		wg.Add(1)
		go runResyncLoop(ctx, wg, queue, cfg.SyncInterval)
	}

	queue.FireNow(trigger.ReasonStartup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := queue.Run(ctx, func(ctx context.Context, reason string) {
			if err := performSync(ctx, reason, engine, metrics); err != nil && ctx.Err() == nil {
				slog.Error("Sync operation failed", "error", err)
			}
		})
		// Run only stops once ctx is done.
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Sync loop stopped", "error", err)
		}
		slog.Info("Stopping sync loop")
	}()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("Shutdown signal received")
	case <-ctx.Done():
	}
	cancel()

	serverShutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelServer()
	if err := server.Shutdown(serverShutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	// Wait for the running sync to finish
	wg.Wait()
	slog.Info("Service shutdown complete")
	return nil
}

func runOnce(c *cli.Context) error {
	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}
	metrics := metrics.New(false)
	engine, err := newEngine(cfg, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return performSync(ctx, "manual", engine, metrics)
}

func printHosts(c *cli.Context) error {
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}
	hosts := traefik.New(cfg.Traefik.DynamicConfig()).Hosts(c.Context)
	for _, host := range hosts.Sorted() {
		fmt.Fprintln(c.App.Writer, host)
	}
	return nil
}

func newProvider(cfg *config.Config, metrics *metrics.Metrics) (provider.Provider, error) {
	switch cfg.DNS.Provider {
	case "adguard":
		return adguard.New(cfg.AdGuard, cfg.DNS, metrics)
	case "cloudflare":
		return cloudflare.New(cfg.Cloudflare, cfg.DNS, metrics)
	default:
		return nil, fmt.Errorf("unknown dns provider %q", cfg.DNS.Provider)
	}
}

func newEngine(cfg *config.Config, metrics *metrics.Metrics) (reconcile.Engine, error) {
	dnsProvider, err := newProvider(cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DNS provider: %w", err)
	}

	var opts []reconcile.Option
	if cfg.Verify.Server != "" {
		resolver := verify.New(cfg.Verify.Server, cfg.DNS.Timeout)
		slog.Info("Verifying added hosts", "server", resolver.Server())
		opts = append(opts, reconcile.WithVerifier(resolver))
	}

	src := traefik.New(cfg.Traefik.DynamicConfig())
	slog.Info("Reading hosts from routing file", "path", src.Path())
	return reconcile.NewEngine(src, dnsProvider, cfg, metrics, opts...), nil
}

func runResyncLoop(ctx context.Context, wg *sync.WaitGroup, queue *trigger.Queue, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			queue.Fire(trigger.ReasonInterval)
		case <-ctx.Done():
			return
		}
	}
}

func performSync(ctx context.Context, reason string, engine reconcile.Engine, metrics *metrics.Metrics) error {
	slog.Info("Starting sync operation", "reason", reason)
	start := time.Now()
	defer func() {
		metrics.SetSyncDuration(time.Since(start))
	}()

	results, err := engine.Reconcile(ctx)
	if err != nil {
		metrics.IncSyncRun(false)
		return err
	}

	metrics.IncSyncRun(len(results.Failures) == 0)
	slog.Info("Sync operation finished",
		"reason", reason,
		"in_sync", results.InSync,
		"failed", len(results.Failures),
		"duration", time.Since(start))
	return nil
}
