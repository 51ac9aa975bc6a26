package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/layoutd/internal/api"
	"github.com/annel0/layoutd/internal/auth"
	"github.com/annel0/layoutd/internal/cache"
	"github.com/annel0/layoutd/internal/config"
	"github.com/annel0/layoutd/internal/decoder"
	"github.com/annel0/layoutd/internal/eventbus"
	"github.com/annel0/layoutd/internal/logging"
	"github.com/annel0/layoutd/internal/observability"
	"github.com/annel0/layoutd/internal/service"
	"github.com/annel0/layoutd/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version задаётся при сборке через -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию LAYOUTD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	consoleLevel, err := logging.ParseLevel(cfg.Logging.ConsoleLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	fileLevel, err := logging.ParseLevel(cfg.Logging.FileLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.Configure(logging.Options{Dir: cfg.Logging.Dir, ConsoleLevel: consoleLevel, FileLevel: fileLevel})

	if err := logging.InitDefaultLogger("layoutd"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 layoutd остановлен")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeID := uuid.NewString()
	logging.Info("🧩 Запуск layoutd %s (node %s)", Version, nodeID)

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logging.Warn("⚠️ Ошибка остановки телеметрии: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// === ХРАНИЛИЩЕ И КЭШ ===
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	layoutCache, err := cache.Open(ctx, cfg.Cache, nodeID)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer layoutCache.Close()

	// === ШИНА СОБЫТИЙ ===
	bus, err := eventbus.Open(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	defer bus.Close()
	eventbus.Init(bus)

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		return fmt.Errorf("event logging: %w", err)
	}

	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start()
	defer exporter.Stop()
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsSrv := exporter.StartHTTP(metricsAddr, reg)
	defer metricsSrv.Close()
	logging.Info("📊 Prometheus метрики: http://localhost%s/metrics", metricsAddr)

	// === СЕРВИС ===
	svc, err := service.New(service.Options{
		Decoder:    decoder.New(decoder.Options{MaxDimension: cfg.Decoder.MaxDimension}),
		Repo:       repo,
		Cache:      layoutCache,
		Bus:        bus,
		Registerer: reg,
	})
	if err != nil {
		return err
	}

	// === АУТЕНТИФИКАЦИЯ ===
	users, err := auth.OpenUserRepo(ctx, cfg.Auth, cfg.Storage)
	if err != nil {
		return fmt.Errorf("user store: %w", err)
	}
	defer users.Close()

	tokens, err := auth.NewTokenManagerFromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	webhooks := api.NewOutboundWebhookManager(nodeID)
	defer webhooks.Close()
	if _, err := webhooks.Attach(ctx, bus); err != nil {
		return fmt.Errorf("webhooks: %w", err)
	}

	// === API ===
	rest := api.NewRestServer(api.Config{
		Service:       svc,
		Authenticator: auth.NewAuthenticator(users, tokens),
		Webhooks:      webhooks,
		Registerer:    reg,
		Gatherer:      reg,
		Version:       Version,
	})

	integration, err := api.NewServerIntegration(api.IntegrationConfig{
		RestAddr: fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		GRPCAddr: fmt.Sprintf(":%d", cfg.Server.GetGRPCPort()),
		Rest:     rest,
	})
	if err != nil {
		return err
	}
	if err := integration.Start(); err != nil {
		return err
	}

	logging.Info("✅ layoutd готов принимать запросы")
	logging.Info("   🌐 REST API: http://localhost:%d", cfg.Server.GetRESTPort())
	logging.Info("   ❤️  gRPC health: localhost:%d", cfg.Server.GetGRPCPort())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	return integration.Stop(stopCtx)
}
