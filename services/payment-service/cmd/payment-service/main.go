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
	"github.com/serenio-health/serenio/services/payment-service/internal/handlers"
	"github.com/serenio-health/serenio/services/payment-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "payment-service")
	port, err := config.Port("PORT", "8084")
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

	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	handler := handlers.NewPaymentHandler(logger, storage.NewRepository(pool), outboxRepo, handlers.Config{
		SecretKey:        config.String("STRIPE_SECRET_KEY", ""),
		WebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		WebhookTolerance: config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		SuccessURL:       config.String("CHECKOUT_SUCCESS_URL", "https://app.serenio.local/payments/success"),
		CancelURL:        config.String("CHECKOUT_CANCEL_URL", "https://app.serenio.local/payments/cancelled"),
		SessionPrice:     int64(config.Int("SESSION_PRICE_CENTS", 7500)),
		Currency:         config.String("SESSION_CURRENCY", "usd"),
	})

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	handler.Register(mux)

	h := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	h = otelhttp.NewHandler(h, "payment")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h,
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
