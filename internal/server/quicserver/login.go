package quicserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/internal/core/service"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/internal/telemetry/metric"
)

const (
	loginRequestLine = "POST /login"
	bearerPrefix     = "Authentication Bearer "
)

// login consumes one login exchange whose request line has already been
// read, and writes the issued session on success.
func (h *handler) login(ctx context.Context, cc *connInfo, fr *frameReader, w io.Writer, requestLine []byte) (*service.SessionBinder, error) {
	if string(requestLine) != loginRequestLine {
		h.metrics.Login(metric.ResultMalformed)
		return nil, domain.ErrMalformedRequest.WithDetails("expected " + loginRequestLine)
	}

	lengthLine, err := fr.ReadLine()
	if err != nil {
		return nil, err
	}
	if lengthLine == nil {
		h.metrics.Login(metric.ResultMalformed)
		return nil, domain.ErrMalformedRequest.WithDetails("missing content length")
	}
	length, err := strconv.ParseUint(string(lengthLine), 10, 32)
	if err != nil {
		h.metrics.Login(metric.ResultMalformed)
		return nil, domain.ErrMalformedRequest.WithDetails("invalid content length").WithCause(err)
	}

	body, err := fr.ReadExact(int(length))
	if err != nil {
		return nil, err
	}

	var creds domain.Login
	if err := json.Unmarshal(body, &creds); err != nil {
		h.metrics.Login(metric.ResultMalformed)
		return nil, domain.ErrMalformedRequest.WithDetails("invalid login body").WithCause(err)
	}

	binder, session, err := h.auth.Authenticate(ctx, cc.peerHost, &creds, cc.secret)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			h.metrics.Login(metric.ResultRateLimited)
		default:
			h.metrics.Login(metric.ResultFailed)
		}
		logger.L(ctx).Warn("login rejected", "login", creds, "error", err)
		return nil, err
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	if err := writeFrame(w, payload); err != nil {
		return nil, err
	}

	h.metrics.Login(metric.ResultOK)
	logger.L(ctx).Info("session established", "username", creds.Username)
	return binder, nil
}

// verifyBearer checks an "Authentication Bearer <session-json>" header line.
func (h *handler) verifyBearer(binder *service.SessionBinder, header []byte) error {
	err := verifyBearerLine(binder, header)
	if err != nil {
		h.metrics.Verification(metric.ResultFailed)
		return err
	}
	h.metrics.Verification(metric.ResultOK)
	return nil
}

func verifyBearerLine(binder *service.SessionBinder, header []byte) error {
	raw, ok := bytes.CutPrefix(header, []byte(bearerPrefix))
	if !ok {
		return domain.ErrInvalidSession.WithDetails("missing bearer header")
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.ErrInvalidSession.WithDetails("malformed session").WithCause(err)
	}
	return binder.Verify(&session)
}
