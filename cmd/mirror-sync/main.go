package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/mirror-sync/internal/auth"
	"github.com/kraklabs/mirror-sync/internal/config"
	"github.com/kraklabs/mirror-sync/internal/gitsync"
	"github.com/kraklabs/mirror-sync/internal/inventory"
	"github.com/kraklabs/mirror-sync/internal/logging"
	"github.com/kraklabs/mirror-sync/internal/metrics"
	"github.com/kraklabs/mirror-sync/internal/orchestrator"
	"github.com/kraklabs/mirror-sync/internal/provider"
	"github.com/kraklabs/mirror-sync/internal/provider/azuredevops"
	"github.com/kraklabs/mirror-sync/internal/provider/github"
	"github.com/kraklabs/mirror-sync/internal/provider/gitlab"
	"github.com/kraklabs/mirror-sync/internal/providerhttp"
	"github.com/kraklabs/mirror-sync/internal/statusemitter"
	"github.com/kraklabs/mirror-sync/internal/targetsfile"

	"github.com/kraklabs/mirror-sync/internal/audit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}

	targets, err := targetsfile.Load(cfg.TargetsFile)
	if err != nil {
		logger.Error("load targets file failed", "err", err)
		os.Exit(1)
	}

	metricsRegistry := metrics.New()
	httpClient := providerhttp.New(providerhttp.Config{
		Timeout:    30 * time.Second,
		MaxRetries: 4,
		UserAgent:  "mirror-sync/1.0",
		Logger:     logger,
	})

	registry := provider.NewRegistry(
		github.New(httpClient.StandardClient(), auth.TokenForTarget),
		gitlab.New(httpClient, auth.TokenForTarget),
		azuredevops.New(httpClient, auth.TokenForTarget),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("signal received, draining in-flight jobs")
		cancel()
	}()

	orch := &orchestrator.Orchestrator{
		LockPath:  cfg.LockFile,
		CachePath: cfg.CacheFile,
		Inventory: inventory.NewLoader(registry),
		GitSync:   gitsync.New(logger),
		Metrics:   metricsRegistry,
		Audit:     audit.NewSlogSink(logger),
		Auth:      auth.RepoAuthForTarget,
		Log:       logger,
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr, "path", cfg.MetricsPath)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	summary, err := orch.Run(ctx, orchestrator.Options{
		Targets:     targets,
		Root:        cfg.RootDir,
		Force:       cfg.Force,
		Refresh:     cfg.Refresh,
		Policy:      cfg.MissingRemote,
		Parallelism: cfg.Parallelism,
		Subscriber:  logProgress(logger),
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	if err != nil {
		logger.Error("sync run failed", "err", err)
		os.Exit(1)
	}

	logger.Info("sync run finished", "status", summary.Status, "targets", len(summary.Targets))
	for _, ts := range summary.Targets {
		logger.Info("target result",
			"target", ts.TargetKey, "status", ts.Status,
			"added", ts.Added, "updated", ts.Updated, "unchanged", ts.Unchanged, "failed", ts.Failed,
			"missing_archived", ts.MissingArchived, "missing_removed", ts.MissingRemoved, "missing_skipped", ts.MissingSkipped,
		)
	}
	if summary.Status != "completed" && summary.Status != "skipped" {
		os.Exit(1)
	}
}

// logProgress logs the full-fidelity SyncProgress stream. Finished events
// are folded into a debounced State per target so a busy org doesn't
// produce a log line per repo, and Started events are not logged;
// TargetBegin/TargetEnd always log immediately since each fires at most
// once per target.
func logProgress(logger *slog.Logger) statusemitter.Subscriber {
	states := make(map[string]*statusemitter.State)
	debounced := func(s statusemitter.State) {
		logger.Info(fmt.Sprintf("progress %s", s.TargetKey), "processed", s.ProcessedRepos, "total", s.TotalRepos)
	}

	return func(p statusemitter.Progress) {
		switch p.Kind {
		case statusemitter.KindTargetBegin:
			logger.Info("target started", "target", p.TargetKey)
			states[p.TargetKey] = statusemitter.NewState(p.TargetKey, 0, time.Now())
		case statusemitter.KindFinished:
			if s, ok := states[p.TargetKey]; ok {
				s.RecordProgress(time.Now(), debounced)
			}
		case statusemitter.KindTargetEnd:
			if s, ok := states[p.TargetKey]; ok {
				s.Flush(time.Now(), debounced)
				delete(states, p.TargetKey)
			}
			logger.Info("target finished", "target", p.TargetKey, "status", p.End.Status, "processed", p.End.Processed, "total", p.End.Total)
		}
	}
}
