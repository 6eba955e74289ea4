//go:build wireinject
// +build wireinject

package di

import (
	"Sentinel/pkg/config"
	"Sentinel/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Foundations
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,

		// Market data sources and failover
		ProvideSources,
		ProvideRouter,

		// Infrastructure backends
		ProvideCache,
		ProvideStore,
		ProvidePublisher,

		// External services
		ProvideAnalyst,
		ProvideNotifier,

		// Use cases
		ProvideCollector,
		ProvideProcessor,
		ProvideTracker,
		ProvideRunner,

		// HTTP surface
		ProvideDashboard,
		ProvideLiveHub,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
