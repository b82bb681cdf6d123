package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/carview/internal/server"
)

// conn is one framed JSON connection to the server.
type conn interface {
	read() ([]byte, error)
	setReadDeadline(t time.Time) error
	write(v any) error
	close() error
}

type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func dialWebSocket(ctx context.Context, config Config) (conn, error) {
	u := url.URL{Scheme: "ws", Host: config.ServerAddr, Path: "/ws"}
	if config.Car != "" {
		u.RawQuery = url.Values{"car": {config.Car}}.Encode()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = config.ConnectTimeout
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: %s: %s", ErrRejected, resp.Status, body)
		}
		return nil, errors.Wrapf(err, "dial %s", u.String())
	}
	ws.SetReadLimit(config.MaxMessageSize)
	return &wsConn{ws: ws}, nil
}

func (c *wsConn) read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) setReadDeadline(t time.Time) error { return c.ws.SetReadDeadline(t) }

func (c *wsConn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *wsConn) close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}

type quicConn struct {
	conn    *quic.Conn
	stream  *quic.Stream
	reader  *bufio.Reader
	writeMu sync.Mutex
}

func dialQUIC(ctx context.Context, config Config) (conn, error) {
	tlsConf := &tls.Config{
		InsecureSkipVerify: config.InsecureSkipVerify,
		NextProtos:         []string{server.QUICProtocol},
	}
	qc, err := quic.DialAddr(ctx, config.ServerAddr, tlsConf, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", config.ServerAddr)
	}
	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "")
		return nil, errors.Wrap(err, "open stream")
	}

	c := &quicConn{conn: qc, stream: stream, reader: bufio.NewReader(stream)}
	if err = c.write(server.Handshake{Car: config.Car}); err != nil {
		_ = c.close()
		return nil, errors.Wrap(err, "send handshake")
	}
	return c, nil
}

func (c *quicConn) read() ([]byte, error) {
	return c.reader.ReadBytes('\n')
}

func (c *quicConn) setReadDeadline(t time.Time) error { return c.stream.SetReadDeadline(t) }

func (c *quicConn) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.stream.Write(append(data, '\n'))
	return err
}

func (c *quicConn) close() error {
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "client closed")
}
