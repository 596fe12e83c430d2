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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/fkhayef/splitledger/docs"
	"github.com/fkhayef/splitledger/internal/config"
	"github.com/fkhayef/splitledger/internal/database"
	"github.com/fkhayef/splitledger/internal/expense"
	expensesplit "github.com/fkhayef/splitledger/internal/expense/split"
	"github.com/fkhayef/splitledger/internal/feed"
	"github.com/fkhayef/splitledger/internal/group"
	"github.com/fkhayef/splitledger/internal/ledger"
	"github.com/fkhayef/splitledger/internal/metrics"
	"github.com/fkhayef/splitledger/internal/notification"
	"github.com/fkhayef/splitledger/internal/settlement"
	"github.com/fkhayef/splitledger/internal/user"
	"github.com/fkhayef/splitledger/pkg/logging"
	mw "github.com/fkhayef/splitledger/pkg/middleware"
)

// @title        Split Ledger API
// @version      1.0
// @description  Shared expenses, settlements and computed balances between friends and groups.
// @BasePath     /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Connected to database successfully")

	rec := metrics.New()

	// Change feed: always in-process, fanned out over AMQP when configured
	bus := feed.NewBus()
	var publisher feed.Publisher = bus
	if cfg.AMQPURL != "" {
		amqpClient, err := feed.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = feed.Publishers{bus, amqpClient}
	}

	// Split Strategy Factory (Factory Pattern)
	splitFactory := expensesplit.NewSplitStrategyFactory()

	// User feature
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo, userService)
	notificationHandler := notification.NewHandler(notificationService)

	// Group feature
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo)
	groupHandler := group.NewHandler(groupService)

	expenseRepo := expense.NewRepository(db)
	settlementRepo := settlement.NewRepository(db)

	// Balances, invalidated by the feed
	view := ledger.NewView(
		ledger.NewRepositoryStore(expenseRepo, settlementRepo, groupRepo),
		ledger.WithCache(cfg.ViewCacheSize),
		ledger.WithDirectory(userService),
		ledger.WithMetrics(rec),
	)
	bus.Subscribe(view.HandleInvalidation)
	ledgerHandler := ledger.NewHandler(view)

	groupService.SetBalanceChecker(view)
	groupService.SetPublisher(publisher)
	groupService.SetNotifier(notificationService)

	// Expense feature (with split factory injected)
	expenseService := expense.NewService(expenseRepo, groupService, splitFactory, publisher, notificationService, rec)
	expenseHandler := expense.NewHandler(expenseService)

	// Settlement feature
	settlementService := settlement.NewService(settlementRepo, groupService, view, publisher, notificationService, rec)
	settlementHandler := settlement.NewHandler(settlementService)

	if cfg.AMQPURL != "" {
		go consumeInvalidations(ctx, cfg, view.HandleInvalidation)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rec.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rec.Handler())

	docs.SwaggerInfo.Host = ""
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Registration is open; the users router guards the rest itself
		r.Mount("/users", userHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(mw.Identity)
			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/expenses", expenseHandler.Routes())
			r.Mount("/settlements", settlementHandler.Routes())
			r.Mount("/balances", ledgerHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

// consumeInvalidations applies invalidations published by every instance,
// reconnecting with backoff until ctx is done.
func consumeInvalidations(ctx context.Context, cfg *config.Config, handler feed.Handler) {
	for attempt := 0; ctx.Err() == nil; attempt++ {
		client, err := feed.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err == nil {
			attempt = 0
			err = client.Consume(ctx, handler)
			client.Close()
		}
		if ctx.Err() != nil {
			return
		}

		wait := feed.Backoff(attempt)
		slog.WarnContext(ctx, "Invalidation consumer stopped, reconnecting",
			"error", err, "attempt", attempt+1, "wait", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
