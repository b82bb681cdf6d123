package injector

import (
	"context"
	"time"

	"github.com/google/wire"
	"github.com/zeusync/carview/internal/assets"
	"github.com/zeusync/carview/internal/config"
	"github.com/zeusync/carview/internal/core/events/bus"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/core/observability/metrics"
	"github.com/zeusync/carview/internal/server"
	"github.com/zeusync/carview/internal/sim"
	"github.com/zeusync/carview/internal/telemetry"
)

const preloadTimeout = 30 * time.Second

// SimSet builds the session registry and the sinks its frames go to.
var SimSet = wire.NewSet(
	ProvideLogger,
	ProvideSimConfig,
	ProvideSink,
	bus.New,
	sim.NewSessions,
)

// ServerSet adds the transport on top of SimSet.
var ServerSet = wire.NewSet(
	SimSet,
	ProvideServerConfig,
	ProvideLibrary,
	metrics.New,
	server.NewServer,
)

// Headless is what a runner without transport needs.
type Headless struct {
	Sessions *sim.Sessions
	Sink     telemetry.Sink
	Logger   log.Log
}

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(log.ParseLevel(cfg.Log.Level))
}

func ProvideSimConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		Vehicle:        cfg.Vehicle,
		Camera:         cfg.Camera.Config,
		Input:          cfg.Input,
		Mode:           cfg.CameraMode(),
		InputQueueSize: cfg.Server.InputQueueSize,
	}
}

func ProvideServerConfig(cfg *config.Config) server.Config {
	transport := cfg.Server.Transport
	return server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		QUICAddr:       cfg.Server.QUICAddr,
		WebSocket:      transport == config.TransportWebSocket || transport == config.TransportBoth,
		QUIC:           transport == config.TransportQUIC || transport == config.TransportBoth,
		MaxClients:     cfg.Server.MaxClients,
		TickRate:       cfg.Server.TickRate,
		MaxDeltaTime:   cfg.Server.MaxDeltaTime,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxMessageSize: cfg.Server.MaxMessageSize,
	}
}

// ProvideLibrary loads the catalog and, when an assets dir is set, checks that
// every model it references can be read. No catalog path yields a nil library.
func ProvideLibrary(cfg *config.Config, logger log.Log) (*assets.Library, error) {
	if cfg.Catalog.Path == "" {
		logger.Info("No catalog configured, accepting any car id")
		return nil, nil
	}
	catalog, err := assets.LoadCatalogFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Catalog.AssetsDir == "" {
		return assets.NewLibrary(catalog, nil), nil
	}

	library := assets.NewLibrary(catalog, assets.FileLoader{Root: cfg.Catalog.AssetsDir})
	ctx, cancel := context.WithTimeout(context.Background(), preloadTimeout)
	defer cancel()
	if err = library.Preload(ctx, 4); err != nil {
		return nil, err
	}
	logger.Info("Catalog loaded",
		log.String("path", cfg.Catalog.Path),
		log.Int("cars", len(catalog.Cars)),
		log.String("default", catalog.Default),
	)
	return library, nil
}

// ProvideSink combines the enabled telemetry backends. The cleanup closes them.
func ProvideSink(cfg *config.Config, logger log.Log) (telemetry.Sink, func(), error) {
	var sinks []telemetry.Sink

	if cfg.Telemetry.Enabled {
		influx := telemetry.NewInfluxSink(telemetry.InfluxConfig{
			URL:           cfg.Telemetry.URL,
			Token:         cfg.Telemetry.Token,
			Org:           cfg.Telemetry.Org,
			Bucket:        cfg.Telemetry.Bucket,
			BatchSize:     cfg.Telemetry.BatchSize,
			FlushInterval: cfg.Telemetry.FlushInterval,
		}, logger)
		sinks = append(sinks, influx)
	}

	if cfg.Recorder.Enabled {
		rec, err := telemetry.OpenRecorder(cfg.Recorder.Path, logger)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, nil, err
		}
		sinks = append(sinks, telemetry.Every(cfg.Recorder.Every, rec))
	}

	sink := telemetry.Multi(sinks...)
	cleanup := func() {
		if err := sink.Close(); err != nil {
			logger.Warn("Failed to close telemetry sinks", log.Error(err))
		}
	}
	return sink, cleanup, nil
}
