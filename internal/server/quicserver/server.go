// Package quicserver serves the tokgate request protocol over multiplexed
// secure connections.
//
// Every accepted connection derives a 32-byte secret from its TLS key
// schedule. A bidirectional stream starts with a login exchange
//
//	POST /login\r\n<content-length>\r\n<json-login>
//
// answered with a raw JSON session whose signature is keyed by that secret.
// Each later exchange on the stream presents the session again
//
//	Authentication Bearer <json-session>\r\nGET <name>\r\n
//
// and is answered with the file bytes in a single write. A session is only
// valid on the connection that issued it. Unidirectional streams carry
// uploads; datagrams are acknowledged with "ack".
package quicserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/internal/core/service"
	"github.com/yndnr/tokgate/internal/storage"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/internal/telemetry/metric"
	"github.com/yndnr/tokgate/internal/transport"
	"github.com/yndnr/tokgate/pkg/cmap"
)

// ExporterLabel is the keying-material exporter label for session binding.
const ExporterLabel = "token-binding"

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("quicserver: server closed")

// Config holds the protocol server configuration.
type Config struct {
	// AllowAnonymous serves a bidirectional stream whose first line is a GET
	// without login. The stream is answered once and finished.
	AllowAnonymous bool

	// MaxUploadLen limits the payload of one upload stream.
	MaxUploadLen int

	// LimiterPruneInterval is how often idle login limiters are dropped.
	LimiterPruneInterval time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AllowAnonymous:       false,
		MaxUploadLen:         MaxUploadLen,
		LimiterPruneInterval: time.Minute,
	}
}

// connHandle tracks a live connection for shutdown.
type connHandle struct {
	conn   transport.Conn
	state  domain.AtomicConnState
	cancel context.CancelFunc
}

// Server accepts connections and runs one dispatcher per connection.
type Server struct {
	cfg     *Config
	handler *handler
	logger  logger.Logger

	conns *cmap.Map[*connHandle]
	wg    sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	listeners []transport.Listener
	cancels   []context.CancelFunc

	accepted atomic.Uint64
}

// New creates a protocol server. uploads may be nil to discard uploads;
// metrics may be nil.
func New(cfg *Config, auth *service.AuthService, files storage.FileStore, uploads storage.UploadSink, metrics *metric.ServerMetrics, log logger.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logger.Discard()
	}
	maxUpload := cfg.MaxUploadLen
	if maxUpload <= 0 {
		maxUpload = MaxUploadLen
	}

	return &Server{
		cfg: cfg,
		handler: &handler{
			auth:           auth,
			files:          files,
			uploads:        uploads,
			metrics:        metrics,
			allowAnonymous: cfg.AllowAnonymous,
			maxUploadLen:   maxUpload,
		},
		logger: log,
		conns:  cmap.New[*connHandle](),
	}
}

// Serve accepts connections from ln until ln is closed, ctx is cancelled or
// Shutdown is called. Connections accepted by Serve keep running after it
// returns; Shutdown ends them.
func (s *Server) Serve(ctx context.Context, ln transport.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	s.listeners = append(s.listeners, ln)
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("protocol server listening",
		"address", ln.Addr().String(),
		"allow_anonymous", s.cfg.AllowAnonymous)

	if s.cfg.LimiterPruneInterval > 0 && s.handler.auth != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.pruneLoop(ctx)
		}()
	}

	for {
		c, err := ln.Accept(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrListenerClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		s.accepted.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, c transport.Conn) {
	id := logger.NewConnID()
	remote := c.RemoteAddr().String()
	peerHost, _, err := net.SplitHostPort(remote)
	if err != nil {
		peerHost = remote
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = logger.WithConnID(logger.WithLogger(ctx, s.logger.With("remote", remote)), id)
	log := logger.L(ctx)

	h := &connHandle{conn: c, cancel: cancel}
	s.conns.Set(id, h)
	defer s.conns.Delete(id)

	start := time.Now()
	s.handler.metrics.ConnOpened()
	log.Info("connection established")

	material, err := c.ExportKeyingMaterial(ExporterLabel, nil, domain.SecretSize)
	secret, ok := domain.SecretFromBytes(material)
	if err != nil || !ok {
		log.Error("derive connection secret failed", "error", err)
		h.state.Advance(domain.ConnClosing)
		c.CloseWithError(transport.CloseCodeInternalError, "internal error")
		h.state.Advance(domain.ConnClosed)
		s.handler.metrics.ConnClosed(metric.ResultError, time.Since(start).Seconds())
		return
	}

	d := &dispatcher{
		h:    s.handler,
		conn: c,
		info: connInfo{id: id, remote: remote, peerHost: peerHost, secret: secret},
	}
	err = d.run(ctx)

	h.state.Advance(domain.ConnClosing)
	result := metric.ResultOK
	if err != nil {
		result = metric.ResultError
		log.Warn("connection dropped", "error", err, "code", domain.GetErrorCode(err))
		c.CloseWithError(transport.CloseCodeProtocolError, closeReason(err))
	} else {
		c.CloseWithError(transport.CloseCodeDone, "")
		log.Info("connection closed", "duration", time.Since(start))
	}
	h.state.Advance(domain.ConnClosed)
	s.handler.metrics.ConnClosed(result, time.Since(start).Seconds())
}

// closeReason is the peer-visible reason for a fatal close. Details stay in
// the server log.
func closeReason(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return domain.ErrTransportFatal.Message
}

func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LimiterPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := s.handler.auth.PruneLimiters(now); n > 0 {
				s.logger.Debug("pruned login limiters", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// ConnCount returns the number of live connections.
func (s *Server) ConnCount() int {
	return s.conns.Len()
}

// Accepted returns the number of connections accepted so far.
func (s *Server) Accepted() uint64 {
	return s.accepted.Load()
}

// Shutdown stops accepting, cancels every connection and waits for their
// handlers. If ctx expires first, remaining connections are closed and
// ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	listeners := s.listeners
	cancels := s.cancels
	s.listeners = nil
	s.cancels = nil
	s.mu.Unlock()

	var firstErr error
	for _, ln := range listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, cancel := range cancels {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.conns.Range(func(_ string, h *connHandle) bool {
			if h.state.Load() == domain.ConnClosed {
				return true
			}
			h.cancel()
			h.conn.CloseWithError(transport.CloseCodeDone, "server shutting down")
			return true
		})
		return ctx.Err()
	}

	s.logger.Info("protocol server stopped")
	return firstErr
}
