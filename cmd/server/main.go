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
	"github.com/redis/go-redis/v9"

	"github.com/atmx/bond-market/internal/api"
	"github.com/atmx/bond-market/internal/client"
	"github.com/atmx/bond-market/internal/config"
	"github.com/atmx/bond-market/internal/ledger"
	"github.com/atmx/bond-market/internal/metrics"
	"github.com/atmx/bond-market/internal/projection"
	"github.com/atmx/bond-market/internal/settlement"
	"github.com/atmx/bond-market/internal/store"
	"github.com/atmx/bond-market/internal/wallet"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Initialize read model ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("ensure schema failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory read model (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Ledger and settlement engine ---
	admin, ephemeral, err := cfg.AdminKeypair()
	if err != nil {
		slog.Error("load admin keypair", "err", err)
		os.Exit(1)
	}
	if ephemeral {
		slog.Warn("no admin key configured, generated a throwaway admin", "admin", admin.Public())
	}

	engine := settlement.NewEngine(cfg.ProgramID)
	l := ledger.New(engine, ledger.WithLogger(logger))

	// --- WebSocket hub and projection ---
	wsHub := api.NewWSHub()
	go wsHub.Run(ctx)
	l.OnCommit(projection.New(st, wsHub, logger).Apply)

	c := client.New(l, engine.Program(), admin)
	if cfg.BootstrapQuoteMint {
		if err := bootstrapQuoteMint(ctx, c, admin, cfg.QuoteMintDecimals); err != nil {
			slog.Error("bootstrap quote mint", "err", err)
			os.Exit(1)
		}
	}

	svc := api.NewService(l, c, st)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
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
		fmt.Fprintf(w, `{"status":"ok","service":"bond-market","program":%q,"slot":%d}`, engine.Program(), l.Slot())
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket feed of committed settlement events. Long-lived, so it
		// sits outside the request timeout.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			// Markets (read model plus admin creation).
			r.Get("/markets", svc.ListMarkets)
			r.Post("/markets", svc.CreateMarket)
			r.Get("/markets/{marketID}", svc.GetMarket)
			r.Get("/markets/{marketID}/trades", svc.GetMarketTrades)
			r.Get("/traders/{trader}/trades", svc.GetTraderTrades)

			// Ledger access for signing clients.
			r.Post("/transactions", svc.SubmitTransaction)
			r.Get("/accounts/{accountID}", svc.GetAccount)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("bond-market listening", "port", cfg.Port, "program", engine.Program(), "admin", admin.Public())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down bond-market...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	stop()
	fmt.Println("bond-market stopped")
}

// bootstrapQuoteMint creates a development quote mint owned by the admin,
// so a fresh ledger can host markets without an external stablecoin.
func bootstrapQuoteMint(ctx context.Context, c *client.Client, admin *wallet.Keypair, decimals uint8) error {
	mint, err := wallet.Generate()
	if err != nil {
		return err
	}
	if _, err := c.CreateMint(ctx, admin, mint, decimals); err != nil {
		return err
	}
	slog.Info("bootstrapped quote mint", "mint", mint.Public(), "decimals", decimals, "authority", admin.Public())
	return nil
}
