package quicserver

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/internal/core/service"
	"github.com/yndnr/tokgate/internal/storage"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/internal/telemetry/metric"
	"github.com/yndnr/tokgate/internal/transport"
)

// datagramAck is sent back for every valid datagram.
var datagramAck = []byte("ack")

// handler holds the collaborators shared by every connection.
type handler struct {
	auth           *service.AuthService
	files          storage.FileStore
	uploads        storage.UploadSink
	metrics        *metric.ServerMetrics
	allowAnonymous bool
	maxUploadLen   int
}

// connInfo is the read-only per-connection state handed to stream tasks.
type connInfo struct {
	id       string
	remote   string
	peerHost string
	secret   domain.Secret
}

type eventKind int

const (
	eventBidi eventKind = iota
	eventUni
	eventDatagram
)

type event struct {
	kind     eventKind
	bidi     transport.Stream
	uni      transport.ReceiveStream
	datagram []byte
	err      error
}

// dispatcher runs the event loop of one connection.
type dispatcher struct {
	h     *handler
	conn  transport.Conn
	info  connInfo
	seq   atomic.Uint64
	tasks sync.WaitGroup
}

// run races stream accepts and datagram receives until the connection ends.
// It returns nil on a graceful end and the fatal error otherwise. Stream
// tasks still running are cancelled and waited for before run returns.
func (d *dispatcher) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	events := make(chan event)
	var pumps sync.WaitGroup
	pumps.Add(3)
	go d.pump(ctx, &pumps, events, func(ctx context.Context) event {
		s, err := d.conn.AcceptStream(ctx)
		return event{kind: eventBidi, bidi: s, err: err}
	})
	go d.pump(ctx, &pumps, events, func(ctx context.Context) event {
		s, err := d.conn.AcceptUniStream(ctx)
		return event{kind: eventUni, uni: s, err: err}
	})
	go d.pump(ctx, &pumps, events, func(ctx context.Context) event {
		b, err := d.conn.ReceiveDatagram(ctx)
		return event{kind: eventDatagram, datagram: b, err: err}
	})

	defer func() {
		cancel()
		pumps.Wait()
		d.tasks.Wait()
	}()

	for {
		var ev event
		select {
		case <-ctx.Done():
			return nil
		case ev = <-events:
		}

		if ev.err != nil {
			return classify(ev.err)
		}

		switch ev.kind {
		case eventBidi:
			d.spawn(ctx, metric.StreamBidi, func(ctx context.Context) { d.serveBidi(ctx, ev.bidi) })
		case eventUni:
			d.spawn(ctx, metric.StreamUni, func(ctx context.Context) { d.serveUni(ctx, ev.uni) })
		case eventDatagram:
			if err := d.handleDatagram(ev.datagram); err != nil {
				return classify(err)
			}
		}
	}
}

// pump feeds the results of accept into events until accept fails or ctx ends.
func (d *dispatcher) pump(ctx context.Context, wg *sync.WaitGroup, events chan<- event, accept func(context.Context) event) {
	defer wg.Done()
	for {
		ev := accept(ctx)
		select {
		case events <- ev:
		case <-ctx.Done():
			if ev.bidi != nil {
				ev.bidi.Reset(domain.StreamCodeInternal)
			}
			if ev.uni != nil {
				ev.uni.Reset(domain.StreamCodeInternal)
			}
			return
		}
		if ev.err != nil {
			return
		}
	}
}

func (d *dispatcher) spawn(ctx context.Context, kind string, fn func(context.Context)) {
	d.h.metrics.Stream(kind)
	ctx = logger.WithStreamID(ctx, d.seq.Add(1))

	d.tasks.Add(1)
	go func() {
		defer d.tasks.Done()
		fn(ctx)
	}()
}

// classify maps a connection-level error to nil (graceful end) or a fatal error.
func classify(err error) error {
	switch {
	case err == nil,
		errors.Is(err, transport.ErrApplicationClosed),
		errors.Is(err, transport.ErrTimedOut),
		errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

func (d *dispatcher) handleDatagram(b []byte) error {
	d.h.metrics.Datagram()
	if !utf8.Valid(b) {
		return domain.ErrProtocolViolation.WithDetails("datagram is not valid UTF-8")
	}
	return d.conn.SendDatagram(datagramAck)
}

// serveBidi runs one bidirectional stream: login (or a single anonymous GET
// when enabled), then authenticated request/response exchanges until the
// peer finishes.
func (d *dispatcher) serveBidi(ctx context.Context, s transport.Stream) {
	stop := context.AfterFunc(ctx, func() { s.Reset(domain.StreamCodeInternal) })
	defer stop()

	log := logger.L(ctx)
	fr := newFrameReader(s)

	first, err := fr.ReadLine()
	if err != nil {
		d.fail(ctx, s, err)
		return
	}
	if first == nil {
		s.Close()
		return
	}

	if d.h.allowAnonymous && bytes.HasPrefix(first, getPrefix) {
		if err := writeFrame(s, d.h.serveRequest(ctx, first)); err != nil {
			log.Debug("write response failed", "error", err)
			return
		}
		s.Close()
		return
	}

	binder, err := d.h.login(ctx, &d.info, fr, s, first)
	if err != nil {
		d.fail(ctx, s, err)
		return
	}

	for {
		header, err := fr.ReadLine()
		if err != nil {
			d.fail(ctx, s, err)
			return
		}
		if header == nil {
			break
		}
		if err := d.h.verifyBearer(binder, header); err != nil {
			d.fail(ctx, s, err)
			return
		}

		line, err := fr.ReadLine()
		if err != nil {
			d.fail(ctx, s, err)
			return
		}
		if line == nil {
			break
		}

		if err := writeFrame(s, d.h.serveRequest(ctx, line)); err != nil {
			log.Debug("write response failed", "error", err)
			return
		}
	}

	s.Close()
}

// serveUni reads one upload to its end and stores it.
func (d *dispatcher) serveUni(ctx context.Context, s transport.ReceiveStream) {
	stop := context.AfterFunc(ctx, func() { s.Reset(domain.StreamCodeInternal) })
	defer stop()

	data, err := readToEnd(s, d.h.maxUploadLen)
	if err != nil {
		d.failRecv(ctx, s, err)
		return
	}
	d.h.metrics.Upload(len(data))

	if d.h.uploads == nil {
		logger.L(ctx).Debug("upload discarded", "bytes", len(data))
		return
	}
	id, err := d.h.uploads.Put(ctx, &storage.Upload{
		ConnID: d.info.id,
		Remote: d.info.remote,
		Data:   data,
	})
	if err != nil {
		logger.L(ctx).Error("store upload failed", "error", err)
		return
	}
	logger.L(ctx).Info("upload stored", "upload_id", id, "bytes", len(data))
}

// fail terminates a bidirectional stream with the reset code of err.
func (d *dispatcher) fail(ctx context.Context, s transport.Stream, err error) {
	code := domain.StreamCode(err)
	s.Reset(code)
	logStreamError(ctx, code, err)
}

func (d *dispatcher) failRecv(ctx context.Context, s transport.ReceiveStream, err error) {
	code := domain.StreamCode(err)
	s.Reset(code)
	logStreamError(ctx, code, err)
}

func logStreamError(ctx context.Context, code uint64, err error) {
	log := logger.L(ctx)
	if _, ok := transport.ResetCode(err); ok || errors.Is(err, transport.ErrApplicationClosed) || ctx.Err() != nil {
		log.Debug("stream aborted", "error", err)
		return
	}
	log.Warn("stream terminated", "reset_code", code, "error", err)
}
