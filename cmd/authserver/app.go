package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/authserver/internal/db"
	"github.com/nkiryanov/authserver/internal/handlers"
	"github.com/nkiryanov/authserver/internal/logger"
	"github.com/nkiryanov/authserver/internal/repository"
	"github.com/nkiryanov/authserver/internal/repository/memory"
	"github.com/nkiryanov/authserver/internal/repository/postgres"
	"github.com/nkiryanov/authserver/internal/repository/rediscache"
	"github.com/nkiryanov/authserver/internal/service/auth"
	"github.com/nkiryanov/authserver/internal/service/auth/fingerprint"
	"github.com/nkiryanov/authserver/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authserver/internal/service/janitor"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr     string
	Handler        http.Handler
	RequestTimeout time.Duration

	janitor *janitor.Janitor
	logger  logger.Logger

	// Release connections on stop
	closers []func()
}

// Open storage by dsn. Returned func releases storage resources
func openStorage(ctx context.Context, dsn string) (repository.Storage, func(), error) {
	if dsn == memoryDSN {
		return memory.NewStorage(), func() {}, nil
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	return postgres.NewStorage(pool), pool.Close, nil
}

func NewServerApp(ctx context.Context, c *Config) (app *ServerApp, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	var closers []func()
	defer func() {
		if err != nil {
			for _, closeFn := range closers {
				closeFn()
			}
		}
	}()

	// Initialize storage
	storage, closeStorage, err := openStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeStorage)

	if c.RedisAddr != "" {
		client, err := rediscache.Connect(ctx, c.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })

		storage = rediscache.NewStorage(storage, client, logger)
		logger.Info("Blacklist cache enabled", "redis", c.RedisAddr)
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	fingerprintKey := c.FingerprintKey
	if fingerprintKey == "" {
		fingerprintKey = fingerprint.DeriveKey(c.SecretKey)
	}
	fp, err := fingerprint.New(fingerprintKey)
	if err != nil {
		return nil, fmt.Errorf("error while creating fingerprinter. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{
		RefreshTransport: c.RefreshTransport,
		SecureCookie:     c.IsProduction(),
		RotateRefresh:    c.RotateRefresh,
	}, tokenManager, storage, fp, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(
		handlers.RouterConfig{
			CORSOrigins:    c.CORSOrigins,
			RequestTimeout: c.RequestTimeout,
		},
		authService,
		storage,
		logger,
	)

	return &ServerApp{
		ListenAddr:     c.ListenAddr,
		Handler:        mux,
		RequestTimeout: c.RequestTimeout,
		janitor:        janitor.New(c.CleanupInterval, authService, logger),
		logger:         logger,
		closers:        closers,
	}, nil
}

func (s *ServerApp) close() {
	for _, closeFn := range s.closers {
		closeFn()
	}
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if s.RequestTimeout > 0 {
		httpServer.ReadTimeout = s.RequestTimeout
		httpServer.WriteTimeout = s.RequestTimeout + time.Second
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	janitorStopped := s.janitor.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-janitorStopped

	return err
}
