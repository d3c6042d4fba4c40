// Package server initializes and runs the marketplace backend. It opens the
// database, applies migrations, wires the services and starts the HTTP API,
// shutting down gracefully on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/distrofy/backend/internal/logging"
	"github.com/distrofy/backend/internal/server/config"
	"github.com/distrofy/backend/internal/server/httpapi"
	"github.com/distrofy/backend/internal/server/payments"
	"github.com/distrofy/backend/internal/server/repositories/repomanager"
	"github.com/distrofy/backend/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()

	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	provider := payments.NewOfflineProvider()

	userService := services.NewUserService(db, rm, cfg)
	productService := services.NewProductService(db, rm)
	purchaseService := services.NewPurchaseService(db, rm, provider, cfg)
	downloadService := services.NewDownloadService(db, rm, cfg)
	fileService := services.NewFileService(cfg)

	server := httpapi.NewServer(cfg.EndpointAddrHTTP, logger,
		userService, productService, purchaseService, downloadService, fileService,
		cfg.SecretKey)

	return &App{config: cfg, logger: logger, db: db, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}
}
