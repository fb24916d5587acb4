package command

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/tokgate/internal/cli/client"
	"github.com/yndnr/tokgate/internal/core/service"
	"github.com/yndnr/tokgate/internal/server/quicserver"
	"github.com/yndnr/tokgate/internal/storage"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/internal/telemetry/metric"
	"github.com/yndnr/tokgate/internal/transport/memtransport"
	"github.com/yndnr/tokgate/pkg/token"
)

const (
	testUser     = "admin"
	testPassword = "admin_password"
	waitTimeout  = 5 * time.Second
)

var sampleJSON = `{"name":"tokgate","ok":true}`

// harness runs a protocol server in memory and CLI invocations against it.
type harness struct {
	ln      *memtransport.Listener
	uploads *storage.MemorySink
	profile string
}

func newHarness(t *testing.T, allowAnonymous bool) *harness {
	t.Helper()

	auth := service.NewAuthService(service.StaticCredentials{
		Username:     testUser,
		PasswordHash: token.HashPassword(testPassword),
	}, &service.AuthServiceConfig{})

	h := &harness{
		ln:      memtransport.NewListener(),
		uploads: storage.NewMemorySink(4),
		profile: filepath.Join(t.TempDir(), "cli.yaml"),
	}
	cfg := quicserver.DefaultConfig()
	cfg.AllowAnonymous = allowAnonymous
	srv := quicserver.New(cfg, auth, storage.MapStore{"sample.json": []byte(sampleJSON)}, h.uploads,
		metric.NewServerMetrics(prometheus.NewRegistry()), logger.Discard())

	go srv.Serve(context.Background(), h.ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return h
}

func (h *harness) dial(ctx context.Context, _ *GlobalFlags) (*client.Client, error) {
	conn, err := h.ln.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return client.New(conn), nil
}

// run executes the CLI with args and returns what it wrote to stdout.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(stdin)
	app.Metadata = map[string]any{metaDialer: Dialer(h.dial)}

	full := append([]string{"tokgate-cli", "--config", h.profile}, args...)
	err := app.Run(full)
	return out.String(), err
}
