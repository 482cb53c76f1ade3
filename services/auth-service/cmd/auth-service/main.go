package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/serenio-health/serenio/libs/config"
	"github.com/serenio-health/serenio/libs/db"
	"github.com/serenio-health/serenio/libs/httpx"
	otelx "github.com/serenio-health/serenio/libs/otel"
	"github.com/serenio-health/serenio/libs/outbox"
	"github.com/serenio-health/serenio/libs/runtime"
	"github.com/serenio-health/serenio/services/auth-service/internal/audit"
	"github.com/serenio-health/serenio/services/auth-service/internal/handlers"
	"github.com/serenio-health/serenio/services/auth-service/internal/sessions"
	"github.com/serenio-health/serenio/services/auth-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "auth-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var signer handlers.TokenSigner
	if pemKey := config.String("JWT_RS256_PRIVATE_KEY_PEM", ""); pemKey != "" {
		signer, err = handlers.NewRS256Signer([]byte(pemKey), config.String("JWT_RS256_KID", ""))
		if err != nil {
			logger.Error("rs256 signer init failed", "err", err)
			panic(err)
		}
	} else {
		secret, err := config.RequiredString("JWT_SECRET")
		if err != nil {
			panic(err)
		}
		signer = handlers.NewHS256Signer(secret)
	}

	users := storage.NewUserRepository(pool)
	auditRepo := audit.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	refreshRepo := sessions.NewRefreshRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	authHandler := handlers.NewAuthHandler(
		logger,
		signer,
		pool,
		users,
		auditRepo,
		outboxRepo,
		refreshRepo,
		config.Duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		config.String("ADMIN_API_KEY", ""),
	)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	authHandler.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "auth")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
