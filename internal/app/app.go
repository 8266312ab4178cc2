// Package app wires configuration, persistence, services and the terminal
// client into a runnable process. It handles graceful shutdown: the state is
// saved one last time and the backend is closed.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/mtms/internal/cli"
	"github.com/dmitrijs2005/mtms/internal/config"
	"github.com/dmitrijs2005/mtms/internal/cryptox"
	"github.com/dmitrijs2005/mtms/internal/identity"
	"github.com/dmitrijs2005/mtms/internal/ledger"
	"github.com/dmitrijs2005/mtms/internal/legacy"
	"github.com/dmitrijs2005/mtms/internal/logging"
	"github.com/dmitrijs2005/mtms/internal/metrics"
	"github.com/dmitrijs2005/mtms/internal/session"
	"github.com/dmitrijs2005/mtms/internal/snapshot"
	"github.com/dmitrijs2005/mtms/internal/snapshot/filestore"
	"github.com/dmitrijs2005/mtms/internal/snapshot/s3store"
	"github.com/dmitrijs2005/mtms/internal/snapshot/sqlstore"
	"github.com/dmitrijs2005/mtms/internal/store"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   *store.Store
	backend io.Closer
	cli     *cli.App

	metricsLn net.Listener
}

// NewApp builds the process from c. The terminal client reads from in and
// writes to out; logs go to logOut.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out, logOut io.Writer) (*App, error) {
	logger, err := logging.New(c.LogFormat, logOut)
	if err != nil {
		return nil, err
	}

	adapter, backend, err := openAdapter(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	st, err := store.Open(ctx, adapter, logger)
	if err != nil {
		closeQuietly(backend)
		return nil, fmt.Errorf("storage load error: %w", err)
	}

	hasher, err := cryptox.New(c.PasswordHasher)
	if err != nil {
		closeQuietly(backend)
		return nil, err
	}

	if c.LegacyImportFile != "" {
		if _, err := legacy.NewImporter(st, hasher, logger).ImportFile(ctx, c.LegacyImportFile); err != nil {
			closeQuietly(backend)
			return nil, fmt.Errorf("legacy import error: %w", err)
		}
	}

	ids, err := identity.NewService(st, hasher, logger)
	if err != nil {
		closeQuietly(backend)
		return nil, err
	}
	led := ledger.NewService(st, ids, logger)
	secret := []byte(c.SecretKey)
	if c.SecretKey == "" {
		if secret, err = session.LoadOrCreateSecret(session.SecretFile(c.SessionFile)); err != nil {
			closeQuietly(backend)
			return nil, err
		}
	}
	sessions := session.NewManager(session.NewFileStore(c.SessionFile), ids, secret, c.SessionTTL)
	term := cli.NewApp(ids, led, sessions, logger, in, out, c.ReportWindowDays)

	return &App{config: c, logger: logger, store: st, backend: backend, cli: term}, nil
}

// openAdapter returns the snapshot adapter for the configured backend and,
// for backends holding a connection, the closer that releases it.
func openAdapter(ctx context.Context, c *config.Config) (snapshot.Adapter, io.Closer, error) {
	switch c.StorageBackend {
	case config.BackendMemory:
		return snapshot.NewMemory(), nil, nil
	case config.BackendFile:
		return filestore.New(c.DataFile), nil, nil
	case config.BackendSQLite:
		s, err := sqlstore.OpenSQLite(ctx, c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendPostgres:
		s, err := sqlstore.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendS3:
		s, err := s3store.NewFromOptions(ctx, s3store.Options{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Key:          c.S3ObjectKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startMetricsServer(ctx context.Context) (*http.Server, error) {
	if app.config.MetricsAddr == "" {
		return nil, nil
	}

	ln, err := net.Listen("tcp", app.config.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}
	app.metricsLn = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "metrics server stopped", "error", err)
		}
	}()
	app.logger.Info(ctx, "metrics server started", "addr", ln.Addr().String())
	return srv, nil
}

// Run serves the terminal client until it exits or the process is signalled,
// then shuts down. The returned error reports a failed final save.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.StorageBackend)

	app.initSignalHandler(ctx, cancelFunc)

	srv, err := app.startMetricsServer(ctx)
	if err != nil {
		app.logger.Error(ctx, err.Error())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.cli.Run(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// the terminal goroutine may stay blocked on input; the process exits
		app.logger.Info(ctx, "shutdown requested")
	}

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Warn(ctx, "metrics server shutdown", "error", err)
		}
		cancel()
	}

	return app.Close(context.Background())
}

// Close saves the state, releases the backend and flushes the logger.
func (app *App) Close(ctx context.Context) error {
	var errs []error
	if err := app.store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		// syncing a terminal returns EINVAL
		_ = z.Sync()
	}
	return errors.Join(errs...)
}
