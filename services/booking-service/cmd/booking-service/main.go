package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/serenio-health/serenio/libs/config"
	"github.com/serenio-health/serenio/libs/db"
	"github.com/serenio-health/serenio/libs/httpx"
	"github.com/serenio-health/serenio/libs/inbox"
	"github.com/serenio-health/serenio/libs/kafkax"
	otelx "github.com/serenio-health/serenio/libs/otel"
	"github.com/serenio-health/serenio/libs/outbox"
	"github.com/serenio-health/serenio/libs/runtime"
	"github.com/serenio-health/serenio/services/booking-service/internal/booking"
	"github.com/serenio-health/serenio/services/booking-service/internal/directory"
	"github.com/serenio-health/serenio/services/booking-service/internal/handlers"
	"github.com/serenio-health/serenio/services/booking-service/internal/reminder"
	"github.com/serenio-health/serenio/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	repo := storage.NewAppointmentRepository(pool)
	users := storage.NewUserProjection(pool)
	outboxRepo := outbox.NewRepository(pool)

	var provider directory.Provider
	if addr := config.String("DIRECTORY_GRPC_ADDR", ""); addr != "" {
		p, err := directory.NewGRPCProvider(ctx, addr, config.Duration("DIRECTORY_TIMEOUT", 3*time.Second))
		if err != nil {
			logger.Error("grpc directory provider init failed; falling back to http", "err", err)
		} else {
			provider = p
		}
	}
	if provider == nil {
		provider = directory.NewHTTPProvider(
			config.String("DIRECTORY_URL", "http://directory-service:8082"),
			config.Duration("DIRECTORY_TIMEOUT", 3*time.Second),
		)
	}

	ledger := booking.NewService(logger, booking.NewPgStore(repo, outboxRepo), users, booking.ServiceConfig{
		Quota:     config.Int("BOOKING_QUOTA", 3),
		OpTimeout: config.Duration("BOOKING_OP_TIMEOUT", 5*time.Second),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	sweeper := reminder.NewSweeper(logger, repo, reminder.NewOutboxStager(repo, outboxRepo), reminder.Config{
		Interval: config.Duration("REMINDER_SWEEP_INTERVAL", time.Hour),
		Horizon:  config.Duration("REMINDER_HORIZON", 24*time.Hour),
	})
	go sweeper.Run(ctx)

	// Keep a local projection of accounts so outgoing events can carry the
	// recipient's email without calling the auth service inline.
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		userConsumer := kafkax.NewConsumer(logger, inbox.NewRepository(pool), kafkax.ConsumerConfig{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   config.String("KAFKA_USERS_TOPIC", "auth.user.created.v1"),
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				UserID string `json:"user_id"`
				Email  string `json:"email"`
				Name   string `json:"name"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.UserID == "" || payload.Email == "" {
				logger.Error("missing required event fields", "topic", msg.Topic)
				return nil
			}
			return users.Upsert(ctx, storage.User{ID: payload.UserID, Email: payload.Email, Name: payload.Name})
		})
		go userConsumer.Run(ctx)
	}

	apptHandler := handlers.NewAppointmentHandler(logger, ledger, provider)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	apptHandler.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

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
