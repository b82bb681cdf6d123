// Package config loads carview settings from defaults, an optional YAML file
// and CARVIEW_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/input"
	"github.com/zeusync/carview/internal/core/vehicle"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const EnvPrefix = "CARVIEW"

// Transports
const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
	TransportBoth      = "both"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Vehicle   vehicle.Config  `mapstructure:"vehicle"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Input     input.Config    `mapstructure:"input"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	QUICAddr       string        `mapstructure:"quic_addr"`
	Transport      string        `mapstructure:"transport"`
	TickRate       int           `mapstructure:"tick_rate"`
	MaxDeltaTime   time.Duration `mapstructure:"max_delta_time"`
	MaxClients     int           `mapstructure:"max_clients"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	InputQueueSize int           `mapstructure:"input_queue_size"`
}

type CameraConfig struct {
	Mode          string `mapstructure:"mode"`
	camera.Config `mapstructure:",squash"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TelemetryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Token         string        `mapstructure:"token"`
	Org           string        `mapstructure:"org"`
	Bucket        string        `mapstructure:"bucket"`
	BatchSize     uint          `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type RecorderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Every   int    `mapstructure:"every"`
}

// CatalogConfig points at the car catalog. An empty Path accepts any car id;
// an empty AssetsDir disables model serving.
type CatalogConfig struct {
	Path      string `mapstructure:"path"`
	AssetsDir string `mapstructure:"assets_dir"`
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.quic_addr", d.Server.QUICAddr)
	v.SetDefault("server.transport", d.Server.Transport)
	v.SetDefault("server.tick_rate", d.Server.TickRate)
	v.SetDefault("server.max_delta_time", d.Server.MaxDeltaTime)
	v.SetDefault("server.max_clients", d.Server.MaxClients)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_message_size", d.Server.MaxMessageSize)
	v.SetDefault("server.input_queue_size", d.Server.InputQueueSize)

	v.SetDefault("vehicle.turning_radius", d.Vehicle.TurningRadius)
	v.SetDefault("vehicle.max_speed", d.Vehicle.MaxSpeed)
	v.SetDefault("vehicle.acceleration", d.Vehicle.Acceleration)
	v.SetDefault("vehicle.bounds_radius", d.Vehicle.BoundsRadius)

	v.SetDefault("camera.mode", d.Camera.Mode)
	v.SetDefault("camera.height", d.Camera.Height)
	v.SetDefault("camera.distance", d.Camera.Distance)
	v.SetDefault("camera.damping", d.Camera.Damping)
	v.SetDefault("camera.smoothing", string(d.Camera.Smoothing))
	v.SetDefault("camera.fixed_offset.x", d.Camera.FixedOffset.X)
	v.SetDefault("camera.fixed_offset.y", d.Camera.FixedOffset.Y)
	v.SetDefault("camera.fixed_offset.z", d.Camera.FixedOffset.Z)

	v.SetDefault("input.drag_sensitivity", d.Input.DragSensitivity)
	v.SetDefault("input.touch_sensitivity", d.Input.TouchSensitivity)

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.url", d.Telemetry.URL)
	v.SetDefault("telemetry.token", d.Telemetry.Token)
	v.SetDefault("telemetry.org", d.Telemetry.Org)
	v.SetDefault("telemetry.bucket", d.Telemetry.Bucket)
	v.SetDefault("telemetry.batch_size", d.Telemetry.BatchSize)
	v.SetDefault("telemetry.flush_interval", d.Telemetry.FlushInterval)

	v.SetDefault("recorder.enabled", d.Recorder.Enabled)
	v.SetDefault("recorder.path", d.Recorder.Path)
	v.SetDefault("recorder.every", d.Recorder.Every)

	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.assets_dir", d.Catalog.AssetsDir)
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:     "127.0.0.1:8080",
			QUICAddr:       "127.0.0.1:8443",
			Transport:      TransportWebSocket,
			TickRate:       60,
			MaxDeltaTime:   250 * time.Millisecond,
			MaxClients:     64,
			WriteTimeout:   5 * time.Second,
			MaxMessageSize: 4096,
			InputQueueSize: 256,
		},
		Vehicle: vehicle.DefaultConfig(),
		Camera: CameraConfig{
			Mode:   camera.ModeFollow.String(),
			Config: camera.DefaultConfig(),
		},
		Input: input.DefaultConfig(),
		Log:   LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			URL:           "http://localhost:8086",
			Org:           "carview",
			Bucket:        "carview",
			BatchSize:     500,
			FlushInterval: time.Second,
		},
		Recorder: RecorderConfig{
			Path:  "carview.db",
			Every: 6,
		},
	}
}

// Load builds a Config. An empty path skips the file and uses defaults and
// the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// CameraMode parses Camera.Mode.
func (c *Config) CameraMode() camera.Mode {
	m, err := camera.ParseMode(c.Camera.Mode)
	if err != nil {
		return camera.ModeFollow
	}
	return m
}

// TickInterval is the wall time between two ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Server.TickRate)
}

func (c *Config) Validate() error {
	invalid := func(key string, value any) error {
		return fmt.Errorf("%w: %s = %v", ErrInvalidConfig, key, value)
	}

	switch c.Server.Transport {
	case TransportWebSocket, TransportQUIC, TransportBoth:
	default:
		return invalid("server.transport", c.Server.Transport)
	}
	if c.Server.TickRate <= 0 || c.Server.TickRate > 1000 {
		return invalid("server.tick_rate", c.Server.TickRate)
	}
	if c.Server.MaxDeltaTime <= 0 {
		return invalid("server.max_delta_time", c.Server.MaxDeltaTime)
	}
	if c.Server.MaxClients <= 0 {
		return invalid("server.max_clients", c.Server.MaxClients)
	}
	if c.Server.WriteTimeout <= 0 {
		return invalid("server.write_timeout", c.Server.WriteTimeout)
	}

	if !(c.Vehicle.TurningRadius > 0) {
		return invalid("vehicle.turning_radius", c.Vehicle.TurningRadius)
	}
	if !(c.Vehicle.MaxSpeed > 0) {
		return invalid("vehicle.max_speed", c.Vehicle.MaxSpeed)
	}
	if !(c.Vehicle.Acceleration > 0) {
		return invalid("vehicle.acceleration", c.Vehicle.Acceleration)
	}
	if !(c.Vehicle.BoundsRadius > 0) {
		return invalid("vehicle.bounds_radius", c.Vehicle.BoundsRadius)
	}

	if _, err := camera.ParseMode(c.Camera.Mode); err != nil {
		return invalid("camera.mode", c.Camera.Mode)
	}
	switch c.Camera.Smoothing {
	case camera.SmoothingExponential, camera.SmoothingLinear:
	default:
		return invalid("camera.smoothing", c.Camera.Smoothing)
	}
	if !(c.Camera.Damping > 0) {
		return invalid("camera.damping", c.Camera.Damping)
	}
	if c.Camera.Distance < 0 {
		return invalid("camera.distance", c.Camera.Distance)
	}

	if c.Telemetry.Enabled && c.Telemetry.URL == "" {
		return invalid("telemetry.url", c.Telemetry.URL)
	}
	if c.Recorder.Enabled {
		if c.Recorder.Path == "" {
			return invalid("recorder.path", c.Recorder.Path)
		}
		if c.Recorder.Every <= 0 {
			return invalid("recorder.every", c.Recorder.Every)
		}
	}
	return nil
}
