//go:build wireinject
// +build wireinject

package di

import (
	"DCAClock/pkg/config"
	"DCAClock/pkg/server"

	"github.com/google/wire"
)

// infraSet is shared by the service and the one-shot jobs.
var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideLocation,
	ProvideMetrics,

	// Infrastructure clients
	ProvideRedisClient,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideKafkaProducer,

	// Repositories
	ProvideCandleStore,
	ProvideCandleFeed,
	ProvideConfigStore,
	ProvideClaimer,
	ProvideRecommendationCache,
	ProvideTradeLedger,

	// External services
	ProvideTradeExecutor,
	ProvideAdvisoryProvider,
	ProvideSinks,
	ProvideNotifier,

	// Domain services
	ProvideGuard,
	ProvideAggregator,
	ProvideResolver,
	ProvideRetryPolicy,

	// Use cases
	ProvideAnalysisUseCase,
	ProvideTriggerUseCase,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		ProvideDeliveryQueue,
		ProvideConfigUseCase,
		ProvideCollector,
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideScheduler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeJobs wires the one-shot analysis and trigger commands. Events
// are enqueued for the running app to deliver when the queue is enabled.
func InitializeJobs(cfg *config.Config) (*server.Jobs, func(), error) {
	wire.Build(
		infraSet,
		ProvideProducerQueue,
		ProvideJobs,
	)
	return nil, nil, nil
}
