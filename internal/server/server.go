// Package server hosts simulation sessions and streams their frames to
// viewers over websocket and QUIC.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/carview/internal/assets"
	"github.com/zeusync/carview/internal/core/events/bus"
	"github.com/zeusync/carview/internal/core/input"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/core/observability/metrics"
	"github.com/zeusync/carview/internal/sim"
	"github.com/zeusync/carview/internal/telemetry"
)

// Config holds server configuration
type Config struct {
	// Network settings
	ListenAddr string
	QUICAddr   string
	WebSocket  bool
	QUIC       bool
	MaxClients int

	// Simulation
	TickRate     int
	MaxDeltaTime time.Duration

	// Message settings
	WriteTimeout   time.Duration
	MaxMessageSize int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8080",
		QUICAddr:       "127.0.0.1:8443",
		WebSocket:      true,
		MaxClients:     64,
		TickRate:       60,
		MaxDeltaTime:   250 * time.Millisecond,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Server runs one tick loop per connected viewer.
type Server struct {
	config   Config
	sessions *sim.Sessions
	library  *assets.Library
	sink     telemetry.Sink
	metrics  *metrics.Recorder
	logger   log.Log
	upgrader websocket.Upgrader

	httpServer   *http.Server
	httpListener net.Listener
	quicListener *quic.Listener

	clientCount int64 // atomic
	running     int32 // atomic bool
	closed      int32 // atomic bool

	// ctx is the parent of every client loop; cancel ends them all.
	// workerMu orders workers.Add against the cancel that precedes Wait.
	ctx      context.Context
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	workerMu sync.Mutex

	serveDone chan struct{}
	serveErr  error

	resetSub bus.Subscription
}

// Stats contains server statistics
type Stats struct {
	Clients  int64 `json:"clients"`
	Sessions int   `json:"sessions"`
	Running  bool  `json:"running"`
}

// NewServer wires a server. A nil library accepts any car id and serves no
// models; nil sink and metrics are replaced by no-ops.
func NewServer(config Config, sessions *sim.Sessions, library *assets.Library, sink telemetry.Sink, rec *metrics.Recorder, logger log.Log) *Server {
	if sink == nil {
		sink = telemetry.Nop()
	}
	if rec == nil {
		rec = metrics.Nop()
	}
	if logger == nil {
		logger = log.Nop()
	}
	if config.TickRate <= 0 {
		config.TickRate = DefaultServerConfig().TickRate
	}
	if config.MaxDeltaTime <= 0 {
		config.MaxDeltaTime = DefaultServerConfig().MaxDeltaTime
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultServerConfig().WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   config,
		sessions: sessions,
		library:  library,
		sink:     sink,
		metrics:  rec,
		logger:   logger.With(log.String("component", "server")),
		upgrader: newUpgrader(),
		ctx:      ctx,
		cancel:   cancel,
	}

	eventBus := sessions.Bus()
	eventBus.AddObserver(rec)
	s.resetSub, _ = eventBus.Subscribe(sim.EventVehicleReset, func(e bus.Event) error {
		rec.Reset(context.Background())
		if ev, ok := e.Data().(sim.ResetEvent); ok {
			s.logger.Info("Vehicle reset",
				log.String("session_id", ev.SessionID),
				log.Float64("distance", ev.From.Len()))
		}
		return nil
	})

	s.logger.Info("Server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients),
		log.Int("tick_rate", config.TickRate))

	return s
}

// Handler serves the viewer endpoints: /ws, /catalog, /models/{car} and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /catalog", s.handleCatalog)
	mux.HandleFunc("GET /models/{car}", s.handleModel)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start starts the configured listeners and returns once they are bound.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	var g errgroup.Group

	if s.config.WebSocket {
		ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.config.ListenAddr)
		if err != nil {
			atomic.StoreInt32(&s.running, 0)
			s.logger.Error("Failed to create listener", log.Error(err))
			return err
		}
		s.httpListener = ln
		s.httpServer = &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		s.logger.Info("Server listening", log.String("addr", ln.Addr().String()), log.String("transport", "websocket"))
	}

	if s.config.QUIC {
		ql, err := listenQUIC(s.config.QUICAddr)
		if err != nil {
			if s.httpListener != nil {
				_ = s.httpListener.Close()
			}
			atomic.StoreInt32(&s.running, 0)
			s.logger.Error("Failed to create QUIC listener", log.Error(err))
			return err
		}
		s.quicListener = ql
		g.Go(func() error { return s.acceptQUIC(ql) })
		s.logger.Info("Server listening", log.String("addr", ql.Addr().String()), log.String("transport", "quic"))
	}

	s.serveDone = make(chan struct{})
	go func() {
		s.serveErr = g.Wait()
		close(s.serveDone)
	}()

	s.logger.Info("Server started successfully")
	return nil
}

// Run starts the server and blocks until ctx is canceled or a listener fails,
// then stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.serveDone:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stopErr := s.Stop(stopCtx)
	if errors.Is(stopErr, ErrServerNotRunning) {
		stopErr = nil
	}

	var serveErr error
	select {
	case <-s.serveDone:
		serveErr = s.serveErr
	default:
	}
	return errors.Join(serveErr, stopErr)
}

// Stop closes the listeners, ends every session and waits for client loops
// to exit. A stopped server cannot be started again.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	atomic.StoreInt32(&s.closed, 1)

	s.logger.Info("Stopping server")

	s.stopWorkers()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.quicListener != nil {
		_ = s.quicListener.Close()
	}

	select {
	case <-s.serveDone:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if err := s.waitWorkers(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = s.sessions.Bus().Unsubscribe(s.resetSub)

	s.logger.Info("Server stopped")
	return errors.Join(errs...)
}

// Close ends every client loop and releases resources. It also works for a
// server that was only used through Handler.
func (s *Server) Close() error {
	if atomic.LoadInt32(&s.running) == 1 {
		return s.Stop(context.Background())
	}
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.logger.Info("Closing server")
	s.stopWorkers()
	s.workers.Wait()
	_ = s.sessions.Bus().Unsubscribe(s.resetSub)
	return nil
}

// Addr returns the websocket listener address once started.
func (s *Server) Addr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// QUICAddr returns the QUIC listener address once started.
func (s *Server) QUICAddr() net.Addr {
	if s.quicListener == nil {
		return nil
	}
	return s.quicListener.Addr()
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		Clients:  atomic.LoadInt64(&s.clientCount),
		Sessions: s.sessions.Len(),
		Running:  atomic.LoadInt32(&s.running) == 1,
	}
}

func (s *Server) waitWorkers(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginWorker registers a client loop. It fails once the server is stopping,
// so no loop starts after Stop or Close began waiting.
func (s *Server) beginWorker() bool {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.workers.Add(1)
	return true
}

func (s *Server) stopWorkers() {
	s.workerMu.Lock()
	s.cancel()
	s.workerMu.Unlock()
}

// acquire reserves a client slot.
func (s *Server) acquire() bool {
	for {
		n := atomic.LoadInt64(&s.clientCount)
		if s.config.MaxClients > 0 && n >= int64(s.config.MaxClients) {
			return false
		}
		if atomic.CompareAndSwapInt64(&s.clientCount, n, n+1) {
			return true
		}
	}
}

func (s *Server) release() {
	atomic.AddInt64(&s.clientCount, -1)
}

// resolveCar validates a requested car id against the catalog.
func (s *Server) resolveCar(id string) (string, *assets.Car, error) {
	if s.library == nil {
		return id, nil, nil
	}
	car, err := s.library.Catalog.Car(id)
	if err != nil {
		return "", nil, err
	}
	return car.ID, &car, nil
}

// clientConn is one viewer connection, whatever the transport. WriteJSON may
// be called from several goroutines.
type clientConn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
	Transport() string
	RemoteAddr() string
}

// serveClient runs a session for one connection until the client leaves, a
// write fails or the server stops. The client slot must already be held.
func (s *Server) serveClient(c clientConn, carID string, car *assets.Car) {
	defer s.workers.Done()
	defer s.release()

	sess := s.sessions.Create(carID)
	logger := s.logger.With(
		log.String("session_id", sess.ID().String()),
		log.String("transport", c.Transport()),
		log.String("remote_addr", c.RemoteAddr()))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.metrics.SessionOpened(ctx)
	logger.Info("Client connected", log.String("car", carID), log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))

	defer func() {
		_ = s.sessions.Remove(sess.ID())
		s.metrics.SessionClosed(context.Background())
		logger.Info("Client disconnected", log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)-1))
	}()

	if err := c.WriteJSON(Hello{Type: MessageHello, Session: sess.ID().String(), Car: car, TickRate: s.config.TickRate}); err != nil {
		logger.Warn("Failed to send hello", log.Error(err))
		_ = c.Close()
		return
	}

	readDone := make(chan error, 1)
	go func() {
		readDone <- s.readInput(sess, c, logger)
		cancel()
	}()

	if err := s.runSession(ctx, sess, c); err != nil {
		logger.Debug("Session loop ended", log.Error(err))
	}
	cancel()
	_ = c.Close()
	if err := <-readDone; err != nil {
		logger.Debug("Input reader ended", log.Error(err))
	}
}

// runSession ticks the session at the configured rate and writes frames that
// changed since the last one sent.
func (s *Server) runSession(ctx context.Context, sess *sim.Session, c clientConn) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.config.TickRate))
	defer ticker.Stop()

	sessionID := sess.ID().String()
	last := time.Now()
	var prev sim.Frame
	sent := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := clampDelta(now.Sub(last), s.config.MaxDeltaTime)
			last = now

			start := time.Now()
			f := sess.Tick(dt.Seconds())
			s.metrics.Tick(ctx, time.Since(start))

			if err := s.sink.Record(ctx, sessionID, f); err != nil {
				s.logger.Debug("Telemetry record failed", log.String("session_id", sessionID), log.Error(err))
			}

			if sent && !f.Changed(prev) {
				continue
			}
			if err := c.WriteJSON(FrameMessage{Type: MessageFrame, Frame: f}); err != nil {
				return err
			}
			prev, sent = f, true
			s.metrics.FrameSent(ctx, c.Transport())
		}
	}
}

// readInput feeds client events into the session until the connection fails.
// Bad events are answered with an error message and skipped.
func (s *Server) readInput(sess *sim.Session, c clientConn, logger log.Log) error {
	for {
		data, err := c.ReadMessage()
		if err != nil {
			return err
		}

		var e input.Event
		if err = json.Unmarshal(data, &e); err == nil {
			err = sess.Enqueue(e)
		} else {
			err = errors.Join(ErrInvalidMessage, err)
		}
		if err != nil {
			logger.Debug("Rejected input", log.Error(err))
			if werr := c.WriteJSON(ErrorMessage{Type: MessageError, Error: err.Error()}); werr != nil {
				return werr
			}
		}
	}
}

// clampDelta bounds the wall-clock step so a stalled loop does not produce
// one huge integration step.
func clampDelta(d, limit time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > limit {
		return limit
	}
	return d
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if s.library == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.library.Catalog)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if s.library == nil || s.library.Loader == nil {
		http.NotFound(w, r)
		return
	}
	data, err := s.library.Model(r.Context(), r.PathValue("car"))
	switch {
	case errors.Is(err, assets.ErrUnknownCar), errors.Is(err, assets.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("Failed to load model", log.String("car", r.PathValue("car")), log.Error(err))
		http.Error(w, "failed to load model", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.GetStats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
