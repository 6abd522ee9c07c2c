package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/school-bell/internal/application"
	"github.com/example/school-bell/internal/config"
	"github.com/example/school-bell/internal/device"
	httptransport "github.com/example/school-bell/internal/http"
	"github.com/example/school-bell/internal/mqtt"
	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/persistence/memory"
	"github.com/example/school-bell/internal/persistence/sqlite"
	"github.com/example/school-bell/internal/persistence/sqlite/migration"
	"github.com/example/school-bell/internal/recurrence"
	"github.com/example/school-bell/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		newLogger(os.Stdout, slog.LevelInfo).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.LogLevel)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	ringer, localRinger, releaseRinger, err := buildRinger(cfg, logger)
	if err != nil {
		return err
	}
	defer releaseRinger()

	publisher, err := buildPublisher(cfg)
	if err != nil {
		return err
	}
	var events application.EventPublisher
	if publisher != nil {
		events = publisher
		defer func() {
			if cerr := publisher.Close(); cerr != nil {
				logger.Error("failed to close event publisher", "error", cerr)
			}
		}()
		logger.Info("publishing bell events", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
	}

	handler, ticker := newServer(cfg, store, ringer, localRinger, events, time.Now, logger)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return ticker.Run(groupCtx)
	})
	group.Go(func() error {
		logger.Info("bell API listening", "addr", server.Addr, "storage", cfg.Storage, "push_enabled", ringer != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
			return err
		}
		return nil
	})

	return group.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, error) {
	var store persistence.Store
	switch cfg.Storage {
	case config.StorageMemory:
		store = memory.Open()
	default:
		storage, err := sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = storage
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

// buildRinger combines the configured push transports for manual rings. The
// GPIO relay, when configured, is also returned as the local ringer driven by
// scheduled rings. Both are nil when nothing is configured.
func buildRinger(cfg config.Config, logger *slog.Logger) (push, local application.Ringer, release func(), err error) {
	var (
		ringers  device.Fanout
		releases []func() error
	)

	if cfg.DeviceURL != "" {
		ringer, httpErr := device.NewHTTPRinger(cfg.DeviceURL, &http.Client{Timeout: cfg.DeviceTimeout})
		if httpErr != nil {
			return nil, nil, func() {}, httpErr
		}
		logger.Info("pushing rings to device", "endpoint", ringer.Endpoint())
		ringers = append(ringers, ringer)
	}

	if cfg.GPIOPin >= 0 {
		relay, gpioErr := device.NewGPIORelay(device.DefaultChip, cfg.GPIOPin, logger)
		if gpioErr != nil {
			return nil, nil, func() {}, fmt.Errorf("open gpio relay: %w", gpioErr)
		}
		logger.Info("driving siren relay", "chip", device.DefaultChip, "pin", cfg.GPIOPin)
		ringers = append(ringers, relay)
		releases = append(releases, relay.Close)
		local = relay
	}

	release = func() {
		for _, fn := range releases {
			if err := fn(); err != nil {
				logger.Error("failed to release ringer", "error", err)
			}
		}
	}
	switch len(ringers) {
	case 0:
		return nil, nil, release, nil
	case 1:
		return ringers[0], local, release, nil
	default:
		return ringers, local, release, nil
	}
}

func buildPublisher(cfg config.Config) (mqtt.Publisher, error) {
	if cfg.MQTTBroker == "" {
		return nil, nil
	}
	publisher, err := mqtt.NewRealPublisher(cfg.MQTTBroker, "school-bell-"+uuid.NewString()[:8], cfg.MQTTTopic)
	if err != nil {
		return nil, fmt.Errorf("connect event publisher: %w", err)
	}
	return publisher, nil
}

func newServer(cfg config.Config, store persistence.Store, ringer, localRinger application.Ringer, events application.EventPublisher, now func() time.Time, logger *slog.Logger) (http.Handler, *scheduler.Ticker) {
	engine := recurrence.NewEngine(cfg.Location)

	bell := application.NewBellService(application.BellServiceConfig{
		Schedules:   store,
		Commands:    store,
		Siren:       store,
		Engine:      engine,
		DayCodes:    cfg.DayCodes,
		Ringer:      ringer,
		LocalRinger: localRinger,
		RingTimeout: cfg.DeviceTimeout,
		Publisher:   events,
		IDGenerator: uuid.NewString,
		Now:         now,
		Logger:      logger,
	})
	schedules := application.NewScheduleServiceWithLogger(store, engine, cfg.DayCodes, uuid.NewString, now, logger)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Device:     httptransport.NewDeviceHandler(bell, logger),
		Schedules:  httptransport.NewScheduleHandler(schedules, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return handler, scheduler.NewTicker(bell, cfg.TickInterval, logger)
}
