//go:build wireinject
// +build wireinject

package di

import (
	"TickPulse/pkg/config"
	"TickPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideBridge,
		ProvideLimiter,
		ProvideSnapshotCache,

		// Repositories
		ProvideTickSource,

		// Use cases
		ProvideFetchPool,
		ProvideGenerator,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
