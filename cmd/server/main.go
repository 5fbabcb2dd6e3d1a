package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/related-world/internal/api"
	"github.com/annel0/related-world/internal/app"
	"github.com/annel0/related-world/internal/config"
	"github.com/annel0/related-world/internal/eventbus"
	"github.com/annel0/related-world/internal/logging"
	"github.com/annel0/related-world/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $RELWORLD_CONFIG)")
	debug := flag.Bool("debug", false, "DEBUG уровень в консоли")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	if *debug {
		logging.SetLevel(logging.DEBUG)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка конфигурации: %v", err)
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🌍 Запуск сервера вторичных миров %s", cfg.Server.Name)

	// === TELEMETRY ===
	shutdownTelemetry := observability.ShutdownFunc(observability.Noop)
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Server.Name)
		if err != nil {
			logging.Warn("⚠️  OpenTelemetry недоступен: %v", err)
		} else {
			shutdownTelemetry = shutdown
		}
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("telemetry shutdown: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === EVENT BUS ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	exporter := eventbus.NewMetricsExporter(bus, registry)
	exporter.Start(5 * time.Second)
	defer exporter.Stop()

	if listener, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️  LoggingListener: %v", err)
	} else {
		defer listener.Unsubscribe()
	}

	// === SIMULATION ===
	sim, err := app.New(ctx, app.Options{Config: cfg, Bus: bus, Registry: registry})
	if err != nil {
		return fmt.Errorf("симуляция: %w", err)
	}
	defer sim.Stop()
	if err := sim.Start(ctx); err != nil {
		return err
	}

	webhooks := api.NewOutboundWebhookManager(cfg.Server.Name)
	if err := webhooks.Attach(bus); err != nil {
		return err
	}
	defer webhooks.Close()

	// === REST API ===
	rest := api.NewRestServer(api.Config{
		Port:        cfg.Server.GetRESTPort(),
		Simulation:  sim,
		Webhooks:    webhooks,
		Registry:    registry,
		ServiceName: cfg.Telemetry.ServiceName,
		AdminToken:  cfg.Server.GetAdminToken(),
	})
	if err := rest.Start(); err != nil {
		return fmt.Errorf("REST API: %w", err)
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()
	logging.Info("📈 Prometheus метрики: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())

	logging.Info("✅ Все сервисы запущены")
	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, остановка...")

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
	return nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Шина событий: в памяти (буфер %d)", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionPeriod())
	if err != nil {
		return nil, fmt.Errorf("JetStream %s: %w", cfg.URL, err)
	}
	logging.Info("📨 Шина событий: NATS JetStream %s (stream %s)", cfg.URL, cfg.Stream)
	return bus, nil
}
