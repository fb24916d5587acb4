package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yndnr/tokgate/internal/core/service"
	"github.com/yndnr/tokgate/internal/infra/buildinfo"
	"github.com/yndnr/tokgate/internal/infra/confloader"
	"github.com/yndnr/tokgate/internal/infra/shutdown"
	"github.com/yndnr/tokgate/internal/infra/tlsroots"
	"github.com/yndnr/tokgate/internal/server/config"
	"github.com/yndnr/tokgate/internal/server/httpserver"
	"github.com/yndnr/tokgate/internal/server/quicserver"
	"github.com/yndnr/tokgate/internal/storage"
	"github.com/yndnr/tokgate/internal/telemetry/logger"
	"github.com/yndnr/tokgate/internal/telemetry/metric"
	"github.com/yndnr/tokgate/internal/transport/quictransport"
	"github.com/yndnr/tokgate/pkg/crypto/adaptive"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		listenAddr  = flag.String("addr", "", "QUIC listen address (overrides server.quic.addr)")
		logLevel    = flag.String("log-level", "", "Log level (overrides log.level)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	overrides := map[string]any{
		"server.quic.addr": *listenAddr,
		"log.level":        *logLevel,
	}

	if *showVersion {
		fmt.Printf("tokgate-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.Info("starting tokgate-server",
		"build", buildinfo.Get(),
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	shutdownHandler := shutdown.NewHandler(shutdownTimeout, log)

	// Hooks run in reverse order of registration.
	if *configFile != "" {
		watcher, err := watchConfig(*configFile, overrides, log)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}

	reg := prometheus.NewRegistry()
	metrics := metric.NewServerMetrics(reg)
	metric.Register(reg,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	files, err := storage.OpenDirStore(cfg.Storage.ServeDir, cfg.Server.QUIC.MaxFileSize)
	if err != nil {
		return fmt.Errorf("open serve dir: %w", err)
	}
	shutdownHandler.OnShutdown("file store", func(context.Context) error {
		return files.Close()
	})

	uploads, closeUploads, err := openUploads(cfg, reg, log)
	if err != nil {
		return fmt.Errorf("open upload store: %w", err)
	}
	shutdownHandler.OnShutdown("upload store", func(context.Context) error {
		return closeUploads()
	})

	auth, err := initAuth(cfg)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	certs, err := tlsroots.NewWatcher(cfg.Server.QUIC.TLSCertFile, cfg.Server.QUIC.TLSKeyFile,
		tlsroots.WithLogger(log.With("component", "tls")))
	if err != nil {
		return fmt.Errorf("load tls key pair: %w", err)
	}
	certs.StartAsync()
	shutdownHandler.OnShutdown("tls watcher", func(context.Context) error {
		certs.Stop()
		return nil
	})

	ln, err := quictransport.Listen(cfg.Server.QUIC.Addr, certs.TLSConfig(), quictransport.Config{
		IdleTimeout: cfg.Server.QUIC.IdleTimeout,
		KeepAlive:   cfg.Server.QUIC.KeepAlive,
		MaxStreams:  cfg.Server.QUIC.MaxStreams,
	})
	if err != nil {
		return err
	}

	srv := quicserver.New(&quicserver.Config{
		AllowAnonymous:       cfg.Server.QUIC.AllowAnonymous,
		MaxUploadLen:         cfg.Server.QUIC.MaxUploadSize,
		LimiterPruneInterval: time.Minute,
	}, auth, files, uploads, metrics, log)

	// Stops after the QUIC server so /ready reports the drain.
	if cfg.Server.Metrics.Enabled {
		opsServer := httpserver.New(cfg.Server.Metrics.Addr, httpserver.NewRouter(httpserver.RouterConfig{
			Gatherer:  reg,
			Status:    srv,
			Ready:     shutdownHandler.Ready,
			AllowList: cfg.Server.Metrics.AllowedNetworks,
			Logger:    log.With("component", "http"),
		}))
		go func() {
			log.Info("ops endpoint listening", "addr", cfg.Server.Metrics.Addr)
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops endpoint error", "error", err)
				shutdownHandler.Trigger("ops endpoint failed")
			}
		}()
		shutdownHandler.OnShutdown("ops endpoint", opsServer.Shutdown)
	}

	go func() {
		log.Info("QUIC server listening", "addr", ln.Addr().String(), "alpn", quictransport.ALPN)
		if err := srv.Serve(context.Background(), ln); err != nil && !errors.Is(err, quicserver.ErrServerClosed) {
			log.Error("QUIC server error", "error", err)
			shutdownHandler.Trigger("QUIC server failed")
		}
	}()
	shutdownHandler.OnShutdown("QUIC server", srv.Shutdown)

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file, environment and flags and
// verifies it.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg, err := config.LoadWith(configFile, overrides)
	if err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// watchConfig reapplies the log level whenever the configuration file changes.
// Other settings take effect on restart.
func watchConfig(path string, overrides map[string]any, log logger.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(
		confloader.WithWatcherLogger(log),
		confloader.WithDebounce(250*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := config.LoadWith(path, overrides)
		if err != nil {
			log.Warn("reload config failed", "error", err)
			return
		}
		if !logger.SetLevel(cfg.Log.Level) {
			log.Warn("ignoring unknown log level", "level", cfg.Log.Level)
			return
		}
		log.Info("log level applied", "level", cfg.Log.Level)
	})
	w.StartAsync()
	return w, nil
}

// openUploads opens the configured upload backend.
func openUploads(cfg *config.ServerConfig, reg prometheus.Registerer, log logger.Logger) (storage.UploadSink, func() error, error) {
	st := cfg.Storage
	if st.UploadBackend == config.UploadBackendMemory {
		return storage.NewMemorySink(st.UploadMemoryCapacity), func() error { return nil }, nil
	}

	sinkCfg := storage.DefaultBadgerSinkConfig(st.UploadDir)
	if st.UploadGCInterval > 0 {
		sinkCfg.GCInterval = st.UploadGCInterval
	}
	if st.UploadEncryptionKey != "" {
		key, err := adaptive.DeriveKey(st.UploadEncryptionKey, "tokgate-uploads")
		if err != nil {
			return nil, nil, fmt.Errorf("derive upload key: %w", err)
		}
		cipher, err := adaptive.New(key)
		if err != nil {
			return nil, nil, err
		}
		sinkCfg.Cipher = cipher
	}

	sink, err := storage.OpenBadgerSink(sinkCfg, log.With("component", "uploads"))
	if err != nil {
		return nil, nil, err
	}
	metric.Register(reg, metric.NewStoreCollector("uploads", sink.Size))
	return sink, sink.Close, nil
}

// initAuth builds the login checker for the configured password scheme.
func initAuth(cfg *config.ServerConfig) (*service.AuthService, error) {
	sec := cfg.Security

	var checker service.CredentialChecker
	switch sec.PasswordScheme {
	case config.PasswordSchemeSHA256:
		checker = service.StaticCredentials{Username: sec.AdminUsername, PasswordHash: sec.AdminPasswordHash}
	case config.PasswordSchemeArgon2id:
		checker = service.Argon2Credentials{Username: sec.AdminUsername, PasswordHash: sec.AdminPasswordHash}
	default:
		return nil, fmt.Errorf("unknown password scheme %q", sec.PasswordScheme)
	}

	return service.NewAuthService(checker, &service.AuthServiceConfig{
		LoginRateLimit: sec.LoginRateLimit,
		LoginBurst:     sec.LoginBurst,
	}), nil
}
