package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabricdesk/fabricdesk/cmd/fabricdesk/cli"
	"github.com/fabricdesk/fabricdesk/internal/app"
	"github.com/fabricdesk/fabricdesk/internal/auth"
	"github.com/fabricdesk/fabricdesk/internal/expenses"
	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/observability"
	"github.com/fabricdesk/fabricdesk/internal/platform/cache"
	"github.com/fabricdesk/fabricdesk/internal/platform/db"
	"github.com/fabricdesk/fabricdesk/internal/platform/feed"
	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/reports"
	"github.com/fabricdesk/fabricdesk/internal/sales"
	"github.com/fabricdesk/fabricdesk/internal/shared"
	"github.com/fabricdesk/fabricdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, logger, dbpool, os.Args[1:]))
	}

	if err := db.EnsureSchema(ctx, dbpool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	changes := feed.New(redisClient, logger)
	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authService, err := auth.NewService(auth.Config{
		PasswordHash: cfg.AccessPasswordHash,
		Secret:       cfg.JWTSecret,
		TokenTTL:     cfg.TokenTTL,
	})
	if err != nil {
		logger.Error("init auth", slog.Any("error", err))
		os.Exit(1)
	}

	procurementRepo := procurement.NewRepository(dbpool)
	inventoryService := newInventoryService(cfg, logger, dbpool, procurementRepo, changes)
	procurementService := procurement.NewService(procurementRepo, inventoryService, changes, logger)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, inventoryService, idempotencyStore, changes, metrics, logger)

	expensesRepo := expenses.NewRepository(dbpool)
	expensesService := expenses.NewService(expensesRepo, changes, logger)

	reportsService := reports.NewService(reports.Sources{
		Orders:    salesRepo,
		Purchases: procurementRepo,
		Expenses:  expensesRepo,
		Fabrics:   inventory.NewRepository(dbpool),
	}, reports.NewCache(redisClient, cfg.ReportCacheTTL), logger)
	go func() {
		if err := reportsService.WatchChanges(ctx, changes); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("report cache watcher", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        auth.NewHandler(logger, authService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		SalesHandler:       sales.NewHandler(logger, salesService),
		ExpensesHandler:    expenses.NewHandler(logger, expensesService),
		ReportsHandler:     reports.NewHandler(logger, reportsService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		HealthChecks: map[string]func(context.Context) error{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func newInventoryService(cfg *app.Config, logger *slog.Logger, pool *pgxpool.Pool, purchases inventory.PurchaseLister, changes inventory.ChangeFeed) *inventory.Service {
	return inventory.NewService(inventory.NewRepository(pool), purchases, changes, logger, inventory.ServiceConfig{Strategy: cfg.Strategy()})
}

// runCommand executes an operator subcommand instead of the server.
func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, pool *pgxpool.Pool, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr, cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	valuation := cli.NewValuationCLI(newInventoryService(cfg, logger, pool, procurement.NewRepository(pool), nil))
	return cli.Run(ctx, args, cli.Commands{Jobs: jobsCLI, Valuation: valuation}, os.Stdout, os.Stderr)
}
