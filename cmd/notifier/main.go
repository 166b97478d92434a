// cmd/notifier/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ideamarket/internal/api"
	awsclient "ideamarket/internal/common/aws"
	"ideamarket/internal/common/config"
	"ideamarket/internal/common/database"
	"ideamarket/internal/common/logger"
	"ideamarket/internal/common/observability"
	"ideamarket/internal/invitations/mailer"
	"ideamarket/internal/invitations/service"
	"ideamarket/internal/invitations/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Invites.Store),
		zap.String("mailProvider", cfg.Mail.Provider),
	)

	ctx := context.Background()

	obs, err := observability.New(ctx, observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	// --- Invitation store ---
	st, closeStore, err := buildStore(ctx, cfg, log, zapLog)
	if err != nil {
		zapLog.Fatal("invite store init failed", zap.Error(err))
	}

	// --- Mail transport ---
	m, err := buildMailer(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("mailer init failed", zap.Error(err))
	}
	if v, ok := m.(mailer.Verifier); ok {
		verifyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := v.Verify(verifyCtx); err != nil {
			zapLog.Warn("SMTP verify failed; invites will be recorded with status error until it is reachable", zap.Error(err))
		} else {
			zapLog.Info("SMTP ready")
		}
		cancel()
	}

	// --- Optional SNS events ---
	var events service.EventPublisher
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		events = service.NewSNSPublisher(snsClient, cfg.Integrations.AWS.SNS.TopicARN, log)
		zapLog.Info("Publishing invite events", zap.String("topicArn", cfg.Integrations.AWS.SNS.TopicARN))
	}

	svc, err := service.New(&service.Config{
		TopN:              cfg.Invites.TopN,
		BaseURL:           cfg.Server.BaseURL,
		FromEmail:         cfg.Mail.FromEmail,
		StrictTransitions: cfg.Invites.StrictTransitions,
		MailTimeout:       cfg.MailTimeout(),
		BatchTimeout:      cfg.NotifyBudget(),
	}, service.Dependencies{
		Store:         st,
		Mailer:        m,
		Events:        events,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("service init failed", zap.Error(err))
	}

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewServer(svc, api.Options{
			ClientURL: cfg.Server.ClientURL,
			BaseURL:   cfg.Server.BaseURL,
			Logger:    log,
		}).Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Notifier listening", zap.String("addr", server.Addr), zap.String("baseUrl", cfg.Server.BaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if err := closeStore(); err != nil {
		zapLog.Error("Error closing invite store", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down observability", zap.Error(err))
	}

	zapLog.Info("Notifier stopped gracefully")
}

func buildStore(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) (store.Store, func() error, error) {
	switch cfg.Invites.Store {
	case config.StoreRedis:
		rdb := database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return nil, nil, err
		}
		zapLog.Info("Redis connected successfully")
		st := store.NewRedisStore(rdb.Client, cfg.Invites.KeyPrefix, log)
		return st, rdb.Close, nil

	case config.StorePostgres:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		err = retryWithBackoff(func() error {
			return pg.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return nil, nil, err
		}
		zapLog.Info("PostgreSQL connected successfully")
		st := store.NewPostgresStore(pg.DB, log)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		return st, pg.Close, nil

	default:
		zapLog.Warn("Using in-memory invite store; invitations are lost on restart")
		st := store.NewMemoryStore()
		return st, st.Close, nil
	}
}

func buildMailer(ctx context.Context, cfg *config.Config, log logger.Logger) (mailer.Mailer, error) {
	if cfg.Mail.Provider == config.MailProviderSES || cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := awsclient.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, err
		}
		return mailer.NewSESMailer(sesClient, log), nil
	}
	return mailer.NewSMTPMailer(cfg.Integrations.SMTP, log), nil
}
