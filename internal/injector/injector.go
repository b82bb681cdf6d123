//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/carview/internal/config"
	"github.com/zeusync/carview/internal/server"
)

func InitializeServer(cfg *config.Config) (*server.Server, func(), error) {
	wire.Build(ServerSet)
	return nil, nil, nil
}

func InitializeHeadless(cfg *config.Config) (*Headless, func(), error) {
	wire.Build(SimSet, wire.Struct(new(Headless), "*"))
	return nil, nil, nil
}
