package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/unifiro-api/internal/application/account"
	"github.com/unifiro-api/internal/application/intake"
	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/application/recovery"
	"github.com/unifiro-api/internal/application/session"
	"github.com/unifiro-api/internal/config"
	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/unifiro-api/internal/infrastructure/jwt"
	"github.com/unifiro-api/internal/infrastructure/metrics"
	"github.com/unifiro-api/internal/infrastructure/postgres"
	"github.com/unifiro-api/internal/infrastructure/rabbitmq"
	redisinfra "github.com/unifiro-api/internal/infrastructure/redis"
	s3infra "github.com/unifiro-api/internal/infrastructure/s3"
	"github.com/unifiro-api/internal/infrastructure/smtp"
	snsinfra "github.com/unifiro-api/internal/infrastructure/sns"
	"github.com/unifiro-api/internal/logger"
	"github.com/unifiro-api/internal/pkg/secret"
	transporthttp "github.com/unifiro-api/internal/transport/http"
	"github.com/unifiro-api/internal/transport/http/handler"
	"github.com/unifiro-api/internal/transport/http/middleware"
)

// accountStore is the persistence one account kind needs across its flows.
type accountStore interface {
	account.Store
	recovery.Store
	session.Store
}

// stores is what a store driver provides.
type stores struct {
	users      accountStore
	organizers accountStore
	intake     intake.Store
	check      handler.Check
	closer     io.Closer
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "store", st.closer)

	s3Client, err := s3infra.NewClient(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}
	objects := s3infra.NewStore(s3Client, cfg.S3.Bucket)

	tokens, err := jwtinfra.NewProvider(cfg.JWT)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}
	log.Info().Str("alg", tokens.Algorithm()).Msg("session tokens ready")

	senders, closers, err := buildSenders(ctx, cfg)
	if err != nil {
		return err
	}
	for _, c := range closers {
		defer closeQuietly(log, "notifier", c)
	}
	dispatcher := notification.NewDispatcher(log, notification.Options{
		Workers:     cfg.Auth.NotifyWorkers,
		QueueLength: cfg.Auth.NotifyQueueLength,
		Observer:    metrics.NotificationObserver{},
	}, senders...)

	checks := map[string]handler.Check{
		"store":   st.check,
		"objects": objects.Ping,
	}

	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer closeQuietly(log, "redis", rdb)
		limiter = redisinfra.NewFixedWindowLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		ml := middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer ml.Close()
		limiter = ml
	}

	hasher := secret.NewHasher(cfg.Auth.BcryptCost)
	module := func(kind domain.AccountKind, store accountStore) transporthttp.AccountModule {
		return transporthttp.AccountModule{
			Accounts: account.NewService(account.Deps{
				Kind:     kind,
				Store:    store,
				Hasher:   hasher,
				Notifier: dispatcher,
				OTPTTL:   cfg.Auth.OTPTTL,
				Log:      log,
			}),
			Recovery: recovery.NewService(recovery.Deps{
				Kind:     kind,
				Store:    store,
				Hasher:   hasher,
				Notifier: dispatcher,
				TokenTTL: cfg.Auth.ResetTokenTTL,
				LinkBase: cfg.Auth.ResetLinkBaseURL,
				Log:      log,
			}),
			Sessions: session.NewService(session.Deps{
				Kind:          kind,
				Store:         store,
				Verifier:      hasher,
				Tokens:        tokens,
				SessionTTL:    cfg.Auth.SessionTTL,
				RememberMeTTL: cfg.Auth.RememberMeTTL,
			}),
		}
	}

	router := transporthttp.NewRouter(cfg, log, &transporthttp.Deps{
		Users:      module(domain.KindUser, st.users),
		Organizers: module(domain.KindOrganizer, st.organizers),
		Intake:     intake.NewService(intake.Deps{Store: st.intake, Objects: objects, Log: log}),
		Limiter:    limiter,
		Checks:     checks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("notifications still queued at shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return &stores{
			users:      postgres.NewAccountRepo(db, domain.KindUser),
			organizers: postgres.NewAccountRepo(db, domain.KindOrganizer),
			intake:     postgres.NewIntakeRepo(db),
			check:      db.PingContext,
			closer:     db,
		}, nil
	default:
		client, err := dynamo.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("dynamo client: %w", err)
		}
		dynamo.Bootstrap(ctx, client, cfg.Dynamo, log)
		t := cfg.Dynamo
		return &stores{
			users:      dynamo.NewAccountRepo(client, domain.KindUser, t.Users, t.Uniques),
			organizers: dynamo.NewAccountRepo(client, domain.KindOrganizer, t.Organizers, t.Uniques),
			intake:     dynamo.NewIntakeRepo(client, t),
			check: func(ctx context.Context) error {
				_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &t.Users})
				return err
			},
		}, nil
	}
}

// buildSenders returns the notification channels for cfg and whatever must
// be closed at shutdown.
func buildSenders(ctx context.Context, cfg *config.Config) ([]notification.Sender, []io.Closer, error) {
	var (
		senders []notification.Sender
		closers []io.Closer
	)
	switch cfg.NotifyDriver {
	case config.NotifyAMQP:
		pub, err := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return nil, nil, fmt.Errorf("amqp: %w", err)
		}
		senders = append(senders, pub)
		closers = append(closers, pub)
	default:
		senders = append(senders, smtp.NewNotifier(cfg.SMTP, cfg.Auth.OTPTTL, cfg.Auth.ResetTokenTTL))
	}
	if cfg.SMSEnabled {
		client, err := snsinfra.NewClient(ctx, cfg.AWS, cfg.SNSRegion)
		if err != nil {
			return nil, nil, fmt.Errorf("sns client: %w", err)
		}
		senders = append(senders, snsinfra.NewNotifier(client))
	}
	return senders, closers, nil
}

func closeQuietly(log zerolog.Logger, what string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Str("component", what).Msg("close failed")
	}
}
