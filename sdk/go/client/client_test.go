package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/carview/internal/assets"
	"github.com/zeusync/carview/internal/core/camera"
	"github.com/zeusync/carview/internal/core/input"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/server"
	"github.com/zeusync/carview/internal/sim"
)

const testCatalog = `
default: coupe
cars:
  - id: coupe
    name: Coupe
    model: coupe.glb
`

func startServer(t *testing.T) *server.Server {
	t.Helper()
	catalog, err := assets.LoadCatalog(strings.NewReader(testCatalog))
	require.NoError(t, err)

	cfg := server.DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.QUICAddr = "127.0.0.1:0"
	cfg.QUIC = true
	cfg.TickRate = 200

	sessions := sim.NewSessions(sim.DefaultConfig(), nil, log.Nop())
	srv := server.NewServer(cfg, sessions, assets.NewLibrary(catalog, nil), nil, nil, log.Nop())
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

func connect(t *testing.T, cfg Config) *Client {
	t.Helper()
	c := NewClient(cfg, log.Nop())
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func nextFrame(t *testing.T, c *Client) sim.Frame {
	t.Helper()
	select {
	case f, ok := <-c.Frames():
		require.True(t, ok, "frames closed")
		return f
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no frame")
	}
	return sim.Frame{}
}

func TestClient_Transports(t *testing.T) {
	srv := startServer(t)

	cases := map[string]Config{
		TransportWebSocket: {
			ServerAddr: srv.Addr().String(),
			Transport:  TransportWebSocket,
		},
		TransportQUIC: {
			ServerAddr:         srv.QUICAddr().String(),
			Transport:          TransportQUIC,
			InsecureSkipVerify: true,
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			base := DefaultClientConfig()
			base.ServerAddr = cfg.ServerAddr
			base.Transport = cfg.Transport
			base.InsecureSkipVerify = cfg.InsecureSkipVerify

			c := connect(t, base)
			require.NotNil(t, c.Hello().Car)
			assert.Equal(t, "coupe", c.Hello().Car.ID)
			assert.NotEmpty(t, c.Hello().Session)

			first := nextFrame(t, c)
			assert.Equal(t, "coupe", first.Car)

			require.NoError(t, c.Throttle(1))
			require.NoError(t, c.SetMode(camera.ModeFixed))
			assert.Eventually(t, func() bool {
				select {
				case f := <-c.Frames():
					return f.Vehicle.Speed > 0 && f.Mode == camera.ModeFixed
				default:
					return false
				}
			}, 3*time.Second, time.Millisecond)
		})
	}
}

func TestClient_UnknownCar(t *testing.T) {
	srv := startServer(t)

	cfg := DefaultClientConfig()
	cfg.ServerAddr = srv.Addr().String()
	cfg.Car = "bus"
	c := NewClient(cfg, log.Nop())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrRejected)
}

func TestClient_SendValidation(t *testing.T) {
	c := NewClient(DefaultClientConfig(), log.Nop())
	assert.ErrorIs(t, c.Steer(1), ErrNotConnected)

	srv := startServer(t)
	cfg := DefaultClientConfig()
	cfg.ServerAddr = srv.Addr().String()
	c = connect(t, cfg)

	assert.ErrorIs(t, c.Send(input.Event{Kind: "warp"}), input.ErrInvalidEvent)
}

func TestClient_Close(t *testing.T) {
	srv := startServer(t)
	cfg := DefaultClientConfig()
	cfg.ServerAddr = srv.Addr().String()
	c := connect(t, cfg)

	require.NoError(t, c.Close())
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "client did not finish")
	}
	assert.ErrorIs(t, c.Steer(0), ErrClientClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
	assert.NoError(t, c.Close())
}

func TestClient_InvalidTransport(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.Transport = "carrier-pigeon"
	c := NewClient(cfg, log.Nop())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrInvalidConfig)
}

func TestClient_HelloTimeout(t *testing.T) {
	upgrader := websocket.Upgrader{}
	silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = ws.Close() }()
		// never greet; wait for the client to give up
		_, _, _ = ws.ReadMessage()
	}))
	defer silent.Close()

	cfg := DefaultClientConfig()
	cfg.ServerAddr = strings.TrimPrefix(silent.URL, "http://")
	cfg.ConnectTimeout = 200 * time.Millisecond
	c := NewClient(cfg, log.Nop())

	start := time.Now()
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_ZeroConfigDefaults(t *testing.T) {
	srv := startServer(t)

	c := NewClient(Config{ServerAddr: srv.Addr().String()}, log.Nop())
	assert.Equal(t, DefaultClientConfig().ConnectTimeout, c.config.ConnectTimeout)
	require.NoError(t, c.Connect(context.Background()))
	defer func() { _ = c.Close() }()
	assert.NotEmpty(t, c.Hello().Session)
}

type stubConn struct {
	closed int32
}

func (s *stubConn) read() ([]byte, error)           { return nil, ErrNotConnected }
func (s *stubConn) setReadDeadline(time.Time) error { return nil }
func (s *stubConn) write(any) error                 { return nil }
func (s *stubConn) close() error {
	atomic.AddInt32(&s.closed, 1)
	return nil
}

func TestClient_CloseAfterConnectionLost(t *testing.T) {
	c := NewClient(DefaultClientConfig(), log.Nop())
	stub := &stubConn{}
	c.conn = stub
	atomic.StoreInt32(&c.connected, 1)

	c.workerGroup.Add(1)
	go c.readLoop()
	<-c.Done()
	require.Zero(t, atomic.LoadInt32(&c.connected))

	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.closed), "socket closed after the server dropped it")
}
