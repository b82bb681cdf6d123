package telemetry

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/sim"
)

const Measurement = "vehicle"

type InfluxConfig struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     uint
	FlushInterval time.Duration
}

// InfluxSink writes one point per frame through the non-blocking write API.
// Write failures surface asynchronously and are logged.
type InfluxSink struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	logger log.Log
}

func NewInfluxSink(cfg InfluxConfig, logger log.Log) *InfluxSink {
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval / time.Millisecond))
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	s := &InfluxSink{
		client: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger: logger.With(log.String("component", "influx"), log.String("bucket", cfg.Bucket)),
	}

	go func() {
		for err := range s.writer.Errors() {
			s.logger.Error("Error sending data to InfluxDB", log.Error(err))
		}
	}()
	return s
}

// Ping reports whether the server is reachable.
func (s *InfluxSink) Ping(ctx context.Context) (bool, error) {
	return s.client.Ping(ctx)
}

func (s *InfluxSink) Record(_ context.Context, sessionID string, f sim.Frame) error {
	s.writer.WritePoint(Point(sessionID, f, time.Now()))
	return nil
}

// Close flushes pending points and releases the client.
func (s *InfluxSink) Close() error {
	s.writer.Flush()
	s.client.Close()
	return nil
}

// Point converts a frame into an InfluxDB point.
func Point(sessionID string, f sim.Frame, ts time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{
			"session": sessionID,
			"mode":    f.Mode.String(),
		},
		map[string]any{
			"seq":     f.Seq,
			"speed":   f.Vehicle.Speed,
			"heading": f.Vehicle.Heading,
			"x":       f.Vehicle.Position.X,
			"y":       f.Vehicle.Position.Y,
			"z":       f.Vehicle.Position.Z,
			"reset":   f.Reset,
		},
		ts,
	)
}
