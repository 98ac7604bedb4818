//go:build wireinject
// +build wireinject

package di

import (
	"FinForge/pkg/config"
	"FinForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisCache,
		ProvideRegistry,

		// Repositories
		ProvideCandleSource,
		ProvideDatasetStore,
		ProvideReportPublisher,
		ProvideRunCache,

		// Pipeline stages
		ProvideAligner,
		ProvideValidator,
		ProvideTransformers,
		ProvideOrchestrator,

		// Use cases and HTTP surface
		ProvideRefiner,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
