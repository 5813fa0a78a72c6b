package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/papertrade/engine/internal/catalog"
	"github.com/papertrade/engine/internal/metrics"
	"github.com/papertrade/engine/internal/store"
	"github.com/papertrade/engine/internal/trade"
)

const defaultStartingBalance = 100000

func main() {
	// Optional .env for local development; env vars win.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	startingBalance := decimal.NewFromInt(defaultStartingBalance)
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.LessThanOrEqual(decimal.Zero) {
			slog.Error("invalid STARTING_BALANCE", "value", v)
			os.Exit(1)
		}
		startingBalance = d
	}

	quoteTick := 15 * time.Second
	if v := os.Getenv("QUOTE_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			slog.Error("invalid QUOTE_TICK", "value", v)
			os.Exit(1)
		}
		quoteTick = d
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Quote catalog ---
	cat := catalog.New()

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Quote refresh loop ---
	tickDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(quoteTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, inst := range cat.Tick() {
					wsHub.Broadcast(trade.WSMessage{
						Type:          "quote",
						Symbol:        inst.Symbol,
						Price:         inst.Price.String(),
						ChangePercent: inst.ChangePercent.String(),
					})
				}
				metrics.QuoteTicks.Inc()
			case <-tickDone:
				return
			}
		}
	}()
	defer close(tickDone)

	// --- Trade service ---
	tradeSvc := trade.NewService(st, cat, startingBalance, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trading-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time trade and quote updates.
		r.Get("/ws", wsHub.HandleWS)

		// Accounts.
		r.Post("/accounts", tradeSvc.CreateAccount)
		r.Get("/accounts/lookup", tradeSvc.LookupAccount)
		r.Get("/accounts/{accountID}", tradeSvc.GetAccount)
		r.Get("/accounts/{accountID}/portfolio", tradeSvc.GetPortfolio)
		r.Get("/accounts/{accountID}/transactions", tradeSvc.GetTransactions)
		r.Get("/accounts/{accountID}/watchlist", tradeSvc.GetWatchlist)
		r.Post("/accounts/{accountID}/watchlist/{stockID}", tradeSvc.ToggleWatchlist)

		// Quote catalog.
		r.Get("/stocks", tradeSvc.ListStocks)
		r.Get("/stocks/{symbol}", tradeSvc.GetStock)
		r.Get("/stocks/{symbol}/history", tradeSvc.GetStockHistory)

		// Trade execution.
		r.Post("/trade", tradeSvc.ExecuteTrade)

		// Leaderboard and news.
		r.Get("/leaderboard", tradeSvc.GetLeaderboard)
		r.Get("/news", tradeSvc.GetNews)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trading-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trading-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("trading-engine stopped")
}
