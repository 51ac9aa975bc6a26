package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/annel0/layoutd/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService - имя сервиса в gRPC health protocol
const HealthService = "layoutd.LayoutService"

// ServerIntegration поднимает REST API и gRPC health-сервер и останавливает их вместе
type ServerIntegration struct {
	restServer *RestServer
	restAddr   string
	grpcAddr   string
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	grpcLis    net.Listener
	log        *logging.Logger
}

// IntegrationConfig содержит конфигурацию для интеграции
type IntegrationConfig struct {
	RestAddr string // например ":8088"
	GRPCAddr string // пусто — без gRPC health
	Rest     *RestServer
}

// NewServerIntegration создает интеграцию; серверы запускаются в Start
func NewServerIntegration(config IntegrationConfig) (*ServerIntegration, error) {
	if config.Rest == nil {
		return nil, errors.New("rest server is required")
	}
	if config.RestAddr == "" {
		config.RestAddr = ":8088"
	}

	hs := health.NewServer()
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &ServerIntegration{
		restServer: config.Rest,
		restAddr:   config.RestAddr,
		grpcAddr:   config.GRPCAddr,
		health:     hs,
		log:        logging.GetServerLogger(),
	}, nil
}

// Start запускает серверы. Ошибки привязки портов возвращаются сразу.
func (si *ServerIntegration) Start() error {
	restLis, err := net.Listen("tcp", si.restAddr)
	if err != nil {
		return fmt.Errorf("listen rest %s: %w", si.restAddr, err)
	}

	si.httpServer = &http.Server{
		Handler:           si.restServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := si.httpServer.Serve(restLis); err != nil && err != http.ErrServerClosed {
			si.log.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()
	si.log.Info("✅ REST API сервер запущен на %s", restLis.Addr())

	if si.grpcAddr != "" {
		si.grpcLis, err = net.Listen("tcp", si.grpcAddr)
		if err != nil {
			_ = si.httpServer.Close()
			return fmt.Errorf("listen grpc %s: %w", si.grpcAddr, err)
		}

		si.grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(si.grpcServer, si.health)

		go func() {
			if err := si.grpcServer.Serve(si.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				si.log.Error("❌ Ошибка gRPC сервера: %v", err)
			}
		}()
		si.log.Info("✅ gRPC health сервер запущен на %s", si.grpcLis.Addr())
	}

	si.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	si.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return nil
}

// GRPCAddr возвращает фактический адрес gRPC сервера (после Start)
func (si *ServerIntegration) GRPCAddr() string {
	if si.grpcLis == nil {
		return ""
	}
	return si.grpcLis.Addr().String()
}

// Stop переводит health в NOT_SERVING и останавливает серверы
func (si *ServerIntegration) Stop(ctx context.Context) error {
	si.log.Info("🛑 Остановка API серверов...")
	si.health.Shutdown()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	var firstErr error
	if si.httpServer != nil {
		if err := si.httpServer.Shutdown(ctx); err != nil {
			si.log.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
			firstErr = err
		}
	}

	if si.grpcServer != nil {
		done := make(chan struct{})
		go func() {
			si.grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			si.grpcServer.Stop()
		}
	}

	si.log.Info("✅ API серверы остановлены")
	return firstErr
}

// GetRestServer возвращает REST сервер (для дополнительной настройки)
func (si *ServerIntegration) GetRestServer() *RestServer {
	return si.restServer
}
