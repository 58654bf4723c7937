package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/rl1809/ticket-sale/internal/adapter/handler"
	"github.com/rl1809/ticket-sale/internal/adapter/storage"
	"github.com/rl1809/ticket-sale/internal/applog"
	"github.com/rl1809/ticket-sale/internal/auth"
	"github.com/rl1809/ticket-sale/internal/config"
	"github.com/rl1809/ticket-sale/internal/core/service"
	"github.com/rl1809/ticket-sale/internal/port"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    config.Config
	logger *logrus.Logger
	db     *sql.DB
	sql    *storage.SQLAdapter
	rdb    *redis.Client
	cache  port.CacheRepository
	tokens *auth.TokenManager

	orders  *service.OrderService
	authn   *service.AuthService
	catalog *service.CatalogService
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := applog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	if err := a.openDatabase(ctx); err != nil {
		return nil, err
	}

	if err := a.openCache(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.tokens, err = auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		a.close()
		return nil, err
	}

	a.orders = service.NewOrderService(service.OrderServiceProperty{
		UnitOfWork: a.sql,
		History:    a.sql,
		Cache:      a.cache,
		Logger:     logger,
		Policy: service.PurchasePolicy{
			MaxTicketsPerBuyer: cfg.Purchase.MaxTicketsPerBuyer,
			SaleCutoff:         cfg.Purchase.SaleCutoff,
			TxTimeout:          cfg.Purchase.TxTimeout,
			MaxRetries:         cfg.Purchase.MaxRetries,
		},
		QueueSize: cfg.Workers.QueueSize,
	})
	a.authn = service.NewAuthService(service.AuthServiceProperty{
		Buyers:     a.sql,
		Tokens:     a.tokens,
		Logger:     logger,
		BcryptCost: cfg.JWT.BcryptCost,
	})
	a.catalog = service.NewCatalogService(a.sql, a.cache, logger)

	return a, nil
}

func (a *app) openDatabase(ctx context.Context) error {
	var err error

	switch a.cfg.Database.Driver {
	case storage.SQLite.Name:
		a.db, err = storage.OpenSQLite(a.cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open sqlite: %w", err)
		}
		a.sql = storage.NewSQLiteAdapter(a.db)
	default:
		a.db, err = sql.Open("mysql", a.cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to connect mysql: %w", err)
		}
		a.db.SetMaxOpenConns(a.cfg.Database.MaxOpenConns)
		a.db.SetMaxIdleConns(a.cfg.Database.MaxIdleConns)
		a.db.SetConnMaxLifetime(a.cfg.Database.ConnMaxLifetime)

		if err := a.db.PingContext(ctx); err != nil {
			a.db.Close()
			return fmt.Errorf("failed to ping mysql: %w", err)
		}
		a.sql = storage.NewMySQLAdapter(a.db)
	}

	a.logger.WithField("driver", a.cfg.Database.Driver).Info("connected to database")
	return nil
}

func (a *app) openCache(ctx context.Context) error {
	if a.cfg.Redis.Addr == "" {
		a.cache = storage.NopCache{}
		a.logger.Warn("redis disabled, idempotency keys are not enforced")
		return nil
	}

	a.rdb = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		PoolSize: a.cfg.Redis.PoolSize,
	})
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}

	a.cache = storage.NewRedisAdapter(a.rdb,
		storage.WithCatalogTTL(a.cfg.Redis.CatalogTTL),
		storage.WithIdempotencyTTL(a.cfg.Redis.IdempotencyTTL),
	)
	a.logger.WithField("addr", a.cfg.Redis.Addr).Info("connected to redis")
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func runMigrate(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.sql.Migrate(ctx); err != nil {
		return err
	}
	a.logger.Info("schema is up to date")
	return nil
}

func runSeed(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.sql.Migrate(ctx); err != nil {
		return err
	}
	return a.seed(ctx)
}

func runServe(ctx context.Context, configPath string, seed bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Database.AutoMigrate {
		if err := a.sql.Migrate(ctx); err != nil {
			return err
		}
	}
	if seed {
		if err := a.seed(ctx); err != nil {
			return err
		}
	}

	// Start receipt worker pool
	var wg sync.WaitGroup
	for i := 0; i < a.cfg.Workers.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			service.ReceiptWorker(id, a.orders.CommittedOrders(), a.cache, a.logger)
		}(i)
	}
	a.logger.WithField("count", a.cfg.Workers.Count).Info("started receipt workers")

	var grpcServer *grpc.Server
	if a.cfg.GRPC.Addr != "" {
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryAuthInterceptor(a.tokens)))
		handler.RegisterTicketServiceServer(grpcServer, handler.NewGRPCHandler(a.orders, a.catalog, a.logger))

		lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}

		go func() {
			a.logger.WithField("addr", a.cfg.GRPC.Addr).Info("gRPC server listening")
			if err := grpcServer.Serve(lis); err != nil {
				a.logger.WithError(err).Error("gRPC server error")
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.WithField("addr", a.cfg.HTTP.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
			cancel()
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("HTTP server shutdown")
	}
	a.logger.Info("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		a.logger.Info("gRPC server stopped")
	}

	// Close order queue and wait for workers
	a.orders.Close()
	wg.Wait()
	a.logger.Info("workers stopped")

	return nil
}

func (a *app) router() http.Handler {
	router := mux.NewRouter()
	handler.NewHTTPHandler(a.orders, a.authn, a.catalog, a.logger).
		Register(router, handler.NewAuthenticator(a.tokens))
	router.Use(handler.RequestLogger(a.logger))

	return cors.New(cors.Options{
		AllowedOrigins:   a.cfg.CORS.AllowedOrigins,
		AllowedMethods:   a.cfg.CORS.AllowedMethods,
		AllowedHeaders:   a.cfg.CORS.AllowedHeaders,
		AllowCredentials: a.cfg.CORS.AllowCredentials,
		MaxAge:           a.cfg.CORS.MaxAge,
	}).Handler(router)
}
