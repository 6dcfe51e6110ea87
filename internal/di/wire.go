//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Tradyxa/internal/usecase"
	"Tradyxa/pkg/config"
	"Tradyxa/pkg/server"
)

var resolverSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideDocumentStore,
	ProvideLiveSource,
	ProvideTickerPipeline,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		resolverSet,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Storage
		ProvideCacheBackend,
		ProvideSnapshotCache,
		ProvideJobStore,
		ProvideHistoryStore,
		ProvideHistoryPipeline,
		ProvideEventPublisher,

		// Use cases
		ProvideTickerService,
		ProvideQueue,
		ProvideSimulationService,
		ProvideSpotTicksHandler,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeResolver wires only what a one-shot resolution needs.
func InitializeResolver(cfg *config.Config) (*usecase.TickerPipeline, error) {
	wire.Build(resolverSet)
	return &usecase.TickerPipeline{}, nil
}
