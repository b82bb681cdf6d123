package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/carview/internal/core/observability/log"
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The viewer page may be served from another origin than the
		// simulation host.
		CheckOrigin: func(*http.Request) bool { return true },
	}
}

// handleWebSocket upgrades the request and runs a session for it. The car is
// chosen with the "car" query parameter; empty selects the catalog default.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	carID, car, err := s.resolveCar(r.URL.Query().Get("car"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.beginWorker() {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if !s.acquire() {
		s.workers.Done()
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release()
		s.workers.Done()
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	s.serveClient(&wsConn{conn: conn, writeTimeout: s.config.WriteTimeout}, carID, car)
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closeMu sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Close sends a close frame, best effort, and closes the socket.
func (c *wsConn) Close() error {
	var err error
	c.closeMu.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) Transport() string { return "websocket" }

func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
