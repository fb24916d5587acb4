package quicserver

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/internal/storage"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/internal/telemetry/metric"
)

// fallbackPayload replaces the response of any request that fails.
const fallbackPayload = "failed to handle request"

var getPrefix = []byte("GET ")

// parseGet extracts the file name from a "GET <name>" line.
func parseGet(line []byte) (string, error) {
	raw, ok := bytes.CutPrefix(line, getPrefix)
	if !ok {
		return "", domain.ErrMalformedRequest.WithDetails("missing GET")
	}
	if !utf8.Valid(raw) {
		return "", domain.ErrMalformedRequest.WithDetails("file name is malformed UTF-8")
	}
	name := string(raw)
	if err := storage.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// serveRequest resolves one request line to its response payload. It never
// fails: errors are logged and answered with fallbackPayload.
func (h *handler) serveRequest(ctx context.Context, line []byte) []byte {
	name, err := parseGet(line)
	var data []byte
	if err == nil {
		data, err = h.files.ReadFile(ctx, name)
	}
	if err != nil {
		h.metrics.Request(metric.ResultFallback)
		logger.L(ctx).Warn("handle request failed",
			"request", logger.RedactLine(string(line)),
			"code", domain.GetErrorCode(err),
			"error", err)
		return []byte(fallbackPayload)
	}

	h.metrics.Request(metric.ResultOK)
	logger.L(ctx).Debug("request served", "file", name, "bytes", len(data))
	return data
}
