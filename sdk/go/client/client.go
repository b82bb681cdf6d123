// Package client provides a Go client for a carview server: it receives
// simulation frames and sends viewer input back.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/input"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/server"
	"github.com/zeusync/carview/internal/sim"
)

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

// Client represents a viewer connection
type Client struct {
	conn  conn
	hello server.Hello

	frames  chan sim.Frame
	errs    chan string
	dropped uint64 // atomic

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool
	done      chan struct{}

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
	finishOnce  sync.Once
}

// Config holds configuration for the client
type Config struct {
	// ServerAddr is host:port of the websocket listener or the QUIC listener.
	ServerAddr     string
	Transport      string
	Car            string
	ConnectTimeout time.Duration

	// Message settings
	MaxMessageSize    int64
	MessageBufferSize int

	// InsecureSkipVerify accepts the server's self-signed QUIC certificate.
	InsecureSkipVerify bool

	LogLevel log.Level
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerAddr:        "127.0.0.1:8080",
		Transport:         TransportWebSocket,
		ConnectTimeout:    10 * time.Second,
		MaxMessageSize:    64 * 1024,
		MessageBufferSize: 128,
		LogLevel:          log.LevelInfo,
	}
}

// NewClient creates a new client. Nothing is dialed until Connect.
func NewClient(config Config, logger log.Log) *Client {
	defaults := DefaultClientConfig()
	if config.MessageBufferSize <= 0 {
		config.MessageBufferSize = 1
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if logger == nil {
		logger = log.New(config.LogLevel)
	}

	return &Client{
		frames: make(chan sim.Frame, config.MessageBufferSize),
		errs:   make(chan string, config.MessageBufferSize),
		done:   make(chan struct{}),
		config: config,
		logger: logger.With(log.String("component", "client")),
	}
}

// Connect dials the server and waits for its hello.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	conn, hello, err := c.dial(ctx)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		c.logger.Error("Failed to connect to server",
			log.String("addr", c.config.ServerAddr),
			log.String("transport", c.config.Transport),
			log.Error(err))
		return err
	}
	c.conn = conn
	c.hello = hello

	c.logger.Info("Connected to server",
		log.String("addr", c.config.ServerAddr),
		log.String("session", hello.Session))

	c.workerGroup.Add(1)
	go c.readLoop()
	return nil
}

func (c *Client) dial(ctx context.Context) (conn, server.Hello, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	var (
		cn  conn
		err error
	)
	switch c.config.Transport {
	case TransportWebSocket, "":
		cn, err = dialWebSocket(ctx, c.config)
	case TransportQUIC:
		cn, err = dialQUIC(ctx, c.config)
	default:
		return nil, server.Hello{}, fmt.Errorf("%w: transport %q", ErrInvalidConfig, c.config.Transport)
	}
	if err != nil {
		return nil, server.Hello{}, err
	}

	// the hello read is bounded by the connect timeout too
	if deadline, ok := ctx.Deadline(); ok {
		_ = cn.setReadDeadline(deadline)
	}
	data, err := cn.read()
	if err != nil {
		_ = cn.close()
		return nil, server.Hello{}, errors.Wrap(err, "wait for hello")
	}
	_ = cn.setReadDeadline(time.Time{})
	var hello server.Hello
	if err = json.Unmarshal(data, &hello); err != nil || hello.Type != server.MessageHello {
		_ = cn.close()
		return nil, server.Hello{}, fmt.Errorf("%w: expected hello", ErrInvalidMessage)
	}
	return cn, hello, nil
}

// Hello returns the greeting received on Connect.
func (c *Client) Hello() server.Hello { return c.hello }

// Frames delivers frames in order. When the buffer is full new frames are
// dropped. The channel is closed when the connection ends.
func (c *Client) Frames() <-chan sim.Frame { return c.frames }

// Errors delivers the server's rejections of sent input events.
func (c *Client) Errors() <-chan string { return c.errs }

// Dropped is the number of frames discarded because Frames was not drained.
func (c *Client) Dropped() uint64 { return atomic.LoadUint64(&c.dropped) }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send sends one input event.
func (c *Client) Send(e input.Event) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if atomic.LoadInt32(&c.connected) == 0 {
		return ErrNotConnected
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return c.conn.write(e)
}

func (c *Client) Steer(value float64) error {
	return c.Send(input.Event{Kind: input.KindAxisSteer, Value: value})
}

func (c *Client) Throttle(value float64) error {
	return c.Send(input.Event{Kind: input.KindAxisThrottle, Value: value})
}

func (c *Client) SetMode(mode camera.Mode) error {
	return c.Send(input.Event{Kind: input.KindSetMode, Mode: mode.String()})
}

// Close closes the connection and waits for the reader to exit.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.logger.Info("Closing client")

	var err error
	if c.conn != nil {
		err = c.conn.close()
	}
	c.workerGroup.Wait()
	c.finish()
	return err
}

func (c *Client) readLoop() {
	defer c.workerGroup.Done()
	defer c.finish()

	for {
		data, err := c.conn.read()
		if err != nil {
			if atomic.LoadInt32(&c.closed) == 0 {
				c.logger.Warn("Connection lost", log.Error(err))
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.logger.Warn("Dropping malformed message", log.Error(err))
		return
	}

	switch head.Type {
	case server.MessageFrame:
		var msg server.FrameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping malformed frame", log.Error(err))
			return
		}
		select {
		case c.frames <- msg.Frame:
		default:
			atomic.AddUint64(&c.dropped, 1)
		}
	case server.MessageError:
		var msg server.ErrorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		select {
		case c.errs <- msg.Error:
		default:
		}
	default:
		c.logger.Debug("Ignoring message", log.String("type", head.Type))
	}
}

// finish runs after the reader has stopped sending.
func (c *Client) finish() {
	c.finishOnce.Do(func() {
		atomic.StoreInt32(&c.connected, 0)
		close(c.frames)
		close(c.errs)
		close(c.done)
	})
}
