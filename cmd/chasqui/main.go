package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chasqui-io/chasqui/internal/api"
	"github.com/chasqui-io/chasqui/internal/config"
	"github.com/chasqui-io/chasqui/internal/lifecycle"
	"github.com/chasqui-io/chasqui/internal/logging"
	"github.com/chasqui-io/chasqui/internal/normalize"
	"github.com/chasqui-io/chasqui/internal/provider"
	"github.com/chasqui-io/chasqui/internal/provider/bridge"
	"github.com/chasqui-io/chasqui/internal/provider/loopback"
	"github.com/chasqui-io/chasqui/internal/realtime"
	"github.com/chasqui-io/chasqui/internal/registry"
	"github.com/chasqui-io/chasqui/internal/storage"
	"github.com/chasqui-io/chasqui/internal/webhook"
)

// adapterLookup defers binding to the adapter, which only exists after the
// lifecycle manager is built.
type adapterLookup struct {
	adapter provider.Adapter
}

func (l *adapterLookup) PhoneNumber(sessionID string) string {
	if l.adapter == nil {
		return ""
	}
	return l.adapter.PhoneNumber(sessionID)
}

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logging.Setup(cfg.LogLevel)

	tenants, err := storage.NewTenantRepository(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open tenant repository: %w", err)
	}
	defer tenants.Close()

	hub := realtime.NewHub()
	notifier := realtime.NewNotifier(hub)
	statusRecorder := storage.NewStatusRecorder(tenants, log)

	dispatcher := webhook.NewDispatcher(cfg.WebhookURL, cfg.WebhookTimeout(), log)
	lookup := &adapterLookup{}
	normalizer := normalize.New(dispatcher, lookup, cfg.IgnoredMessageTypes, log)

	factory := provider.NewFactory()
	factory.Register(loopback.ProviderType, loopback.Builder(loopback.Options{
		AutoPairAfter: 2 * time.Second,
	}))
	factory.Register(bridge.ProviderType, bridge.Builder(bridge.Options{
		GatewayURL:     cfg.GatewayURL,
		ConnectTimeout: cfg.ConnectTimeout(),
	}))

	manager, err := lifecycle.New(factory, registry.New(), lifecycle.Config{
		ProviderType:   cfg.ProviderType,
		ConnectTimeout: cfg.ConnectTimeout(),
		RetryDelay:     cfg.RetryDelay(),
		BatchSize:      cfg.BatchSize,
		BatchDelay:     cfg.BatchDelay(),
		CountryCode:    cfg.CountryCode,
		Logger:         log,
	}, notifier, statusRecorder, normalizer)
	if err != nil {
		return fmt.Errorf("failed to build lifecycle manager: %w", err)
	}
	lookup.adapter = manager.Adapter()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bringUpStoredTenants(ctx, log, tenants, manager)

	// Config changes require a restart to take effect on live sessions;
	// the watcher only surfaces that a restart is due.
	reload := config.Watch(ctx, log, configPath)
	go func() {
		for range reload {
			log.Warn("configuration changed on disk, restart to apply")
		}
	}()

	r := chi.NewRouter()
	handler := api.NewHandler(manager, tenants, hub, log)
	handler.Mount(r)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.Shutdown(shutdownCtx)
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening", "addr", cfg.ListenAddr, "provider", cfg.ProviderType)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// bringUpStoredTenants enqueues a bring-up for every stored tenant so
// previously paired sessions come back without any API call. The batcher
// paces the actual connects.
func bringUpStoredTenants(ctx context.Context, log *slog.Logger, tenants *storage.TenantRepository, manager *lifecycle.Manager) {
	stored, err := tenants.FindAll(ctx)
	if err != nil {
		log.Error("failed to list tenants for startup bring-up", "error", err)
		return
	}
	for _, t := range stored {
		manager.Connect(t.ExternalID, t.ReceiveMessages)
	}
	log.Info("startup bring-up enqueued", "tenants", len(stored))
}
