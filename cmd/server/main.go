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
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/zakat-tracker/internal/auth"
	"github.com/ayush/zakat-tracker/internal/config"
	"github.com/ayush/zakat-tracker/internal/httpx"
	"github.com/ayush/zakat-tracker/internal/logger"
	"github.com/ayush/zakat-tracker/internal/middleware"
	"github.com/ayush/zakat-tracker/internal/store"
	"github.com/ayush/zakat-tracker/internal/zakat"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	ctx := context.Background()

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		fatal(log, "mongo connect", err)
	}
	defer mongoClient.Disconnect(context.Background())
	if err := mongoClient.Ping(ctx, nil); err != nil {
		fatal(log, "mongo ping", err)
	}
	mongoDB := mongoClient.Database(cfg.DatabaseName)
	entryStore := store.NewMongoEntryStore(mongoDB)
	if err := entryStore.EnsureIndexes(ctx); err != nil {
		fatal(log, "mongo indexes", err)
	}
	log.Info("connected to mongodb", slog.String("database", cfg.DatabaseName))

	// ── Users: MongoDB or PostgreSQL ─────────────────────────
	var userStore auth.UserStore
	switch cfg.UserStore {
	case config.UserStorePostgres:
		changed, err := store.MigratePostgres(cfg.PostgresDSN, "")
		if err != nil {
			fatal(log, "postgres migrate", err)
		}
		log.Info("postgres schema ready", slog.Bool("migrated", changed))
		pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			fatal(log, "postgres connect", err)
		}
		defer pgPool.Close()
		userStore = store.NewPostgresUserStore(pgPool)
	default:
		mongoUsers := store.NewMongoUserStore(mongoDB)
		if err := mongoUsers.EnsureIndexes(ctx); err != nil {
			fatal(log, "mongo user indexes", err)
		}
		userStore = mongoUsers
	}

	var zakatOpts []zakat.Option

	// ── Redis ────────────────────────────────────────────────
	if cfg.RedisEnabled() {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			fatal(log, "redis connect", err)
		}
		defer rdb.Close()
		zakatOpts = append(zakatOpts, zakat.WithSummaryCache(store.NewSummaryCache(rdb, cfg.SummaryCacheTTL)))
	}

	// ── MinIO ────────────────────────────────────────────────
	if cfg.MinioEnabled() {
		minioStore, err := store.NewMinioStore(
			ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			fatal(log, "minio connect", err)
		}
		zakatOpts = append(zakatOpts, zakat.WithFileStore(minioStore))
	}

	// ── Handlers ─────────────────────────────────────────────
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL())
	authHandler := auth.NewHandler(userStore, auth.NewPasswordHasher(cfg.BcryptCost), tokens, log)
	zakatHandler := zakat.NewHandler(userStore, entryStore, log, zakatOpts...)
	requireAuth := middleware.RequireAuth(tokens, log)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"message": "Welcome to Zakat Management System API"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth routes (public except /me)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	// Zakat routes (protected)
	r.Route("/zakat", func(r chi.Router) {
		r.Use(requireAuth)
		zakatHandler.Routes(r)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("backend listening", slog.String("port", cfg.Port), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("shutdown", slog.String("error", err.Error()))
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
