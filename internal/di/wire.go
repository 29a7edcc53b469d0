//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RiskLab/pkg/config"
	"RiskLab/pkg/server"
)

var commonSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideCatalog,
)

// InitializeIngest wires the batch ingestion runner.
func InitializeIngest(cfg *config.Config) (*server.Ingest, func(), error) {
	wire.Build(
		commonSet,

		// Metrics
		ProvideMetrics,
		ProvideSourceMetrics,

		// Sources
		ProvideBytesCache,
		ProvideRateLimiter,
		ProvideSourceRegistry,

		// Storage and optional mirrors
		ProvideArtifactStore,
		ProvideClickHouseSink,
		ProvideKafkaProducer,
		ProvideRunPublisher,

		// Use cases
		ProvidePipeline,
		ProvideIngest,
	)
	return nil, nil, nil
}

// InitializeApp wires the read-only catalog API.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		commonSet,
		ProvideRunsHandler,
		ProvideApp,
	)
	return nil, nil, nil
}
