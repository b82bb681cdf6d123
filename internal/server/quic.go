package server

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/carview/internal/core/observability/log"
)

// QUICProtocol is the ALPN token clients must offer.
const QUICProtocol = "carview-quic"

const (
	quicHandshakeTimeout = 10 * time.Second
	quicErrNone          = quic.ApplicationErrorCode(0)
	quicErrRejected      = quic.ApplicationErrorCode(1)
)

func listenQUIC(addr string) (*quic.Listener, error) {
	tlsConfig, err := generateTLSConfig()
	if err != nil {
		return nil, errors.Wrap(err, "generate tls config")
	}
	l, err := quic.ListenAddr(addr, tlsConfig, &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return l, nil
}

func (s *Server) acceptQUIC(l *quic.Listener) error {
	s.logger.Debug("QUIC acceptor started")
	defer s.logger.Debug("QUIC acceptor stopped")

	for {
		conn, err := l.Accept(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "failed to accept connection")
		}

		if !s.beginWorker() {
			_ = conn.CloseWithError(quicErrRejected, ErrServerClosed.Error())
			return nil
		}
		if !s.acquire() {
			s.workers.Done()
			s.logger.Warn("Maximum clients reached, rejecting connection",
				log.String("remote_addr", conn.RemoteAddr().String()))
			_ = conn.CloseWithError(quicErrRejected, ErrMaxClientsReached.Error())
			continue
		}

		go s.handleQUIC(conn)
	}
}

// handleQUIC waits for the client's stream and its handshake line, then runs
// the session over newline-delimited JSON.
func (s *Server) handleQUIC(conn *quic.Conn) {
	ctx, cancel := context.WithTimeout(s.ctx, quicHandshakeTimeout)
	defer cancel()

	reject := func(err error) {
		s.logger.Warn("QUIC handshake failed",
			log.String("remote_addr", conn.RemoteAddr().String()),
			log.Error(err))
		_ = conn.CloseWithError(quicErrRejected, err.Error())
		s.release()
		s.workers.Done()
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		reject(errors.Wrap(err, "accept stream"))
		return
	}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 1024), int(s.config.MaxMessageSize))
	_ = stream.SetReadDeadline(time.Now().Add(quicHandshakeTimeout))
	if !scanner.Scan() {
		reject(errors.Wrap(ErrHandshakeFailed, "no handshake line"))
		return
	}
	_ = stream.SetReadDeadline(time.Time{})

	var hs Handshake
	if err := json.Unmarshal(scanner.Bytes(), &hs); err != nil {
		reject(errors.Wrap(ErrHandshakeFailed, err.Error()))
		return
	}
	carID, car, err := s.resolveCar(hs.Car)
	if err != nil {
		reject(errors.Wrap(ErrHandshakeFailed, err.Error()))
		return
	}

	s.serveClient(&quicConn{
		conn:         conn,
		stream:       stream,
		scanner:      scanner,
		writeTimeout: s.config.WriteTimeout,
	}, carID, car)
}

type quicConn struct {
	conn         *quic.Conn
	stream       *quic.Stream
	scanner      *bufio.Scanner
	writeTimeout time.Duration

	writeMu sync.Mutex
	closeMu sync.Once
}

func (c *quicConn) ReadMessage() ([]byte, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("stream closed")
	}
	return append([]byte(nil), c.scanner.Bytes()...), nil
}

func (c *quicConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.stream.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	_, err = c.stream.Write(data)
	return err
}

func (c *quicConn) Close() error {
	var err error
	c.closeMu.Do(func() {
		_ = c.stream.Close()
		err = c.conn.CloseWithError(quicErrNone, "bye")
	})
	return err
}

func (c *quicConn) Transport() string { return "quic" }

func (c *quicConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// generateTLSConfig builds a self-signed certificate for local viewers.
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"carview"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:     []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{QUICProtocol},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
