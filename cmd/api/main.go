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

	"deal_followup_backend/internal/adapters"
	"deal_followup_backend/internal/agent"
	"deal_followup_backend/internal/approval"
	"deal_followup_backend/internal/archive"
	"deal_followup_backend/internal/email"
	"deal_followup_backend/internal/events"
	"deal_followup_backend/internal/eventstream"
	"deal_followup_backend/internal/followup/store"
	"deal_followup_backend/internal/hubspot"
	apphttp "deal_followup_backend/internal/http"
	"deal_followup_backend/internal/http/router"
	"deal_followup_backend/internal/pipeline"
	"deal_followup_backend/internal/slack"
	"deal_followup_backend/platform/config"
	"deal_followup_backend/platform/db"
	"deal_followup_backend/platform/logger"
	"deal_followup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting follow-up api", "env", cfg.Env, "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Record store
	// ========================================================================

	recordStore, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	// ========================================================================
	// Event bus and best-effort sinks
	// ========================================================================

	eventBus := events.NewInMemoryBus(log)

	if cfg.IsMinIOEnabled() {
		objects, err := archive.NewMinIOStore(cfg)
		if err != nil {
			panic("failed to initialize archive storage: " + err.Error())
		}
		archiver := archive.New(objects, cfg.GetMinIOArchiveBucket(), log)
		if err := withRetry(ctx, log, "ensure archive bucket", 5, 2*time.Second, func() error {
			return archiver.Start(ctx, eventBus)
		}); err != nil {
			log.Error("follow-up archive disabled", "error", err)
		}
	}

	if cfg.IsKafkaEnabled() {
		streamCfg := eventstream.Config{
			Brokers:     cfg.GetKafkaBrokers(),
			Topic:       cfg.GetKafkaTopic(),
			MaxAttempts: cfg.GetKafkaMaxAttempts(),
		}
		writer, err := eventstream.NewKafkaWriter(streamCfg)
		if err != nil {
			panic("failed to initialize kafka writer: " + err.Error())
		}
		publisher := eventstream.NewPublisher(writer, streamCfg, log)
		publisher.Subscribe(eventBus)
		defer func() { _ = publisher.Close() }()
		log.Info("follow-up event stream enabled", "topic", cfg.GetKafkaTopic())
	}

	// ========================================================================
	// Collaborators
	// ========================================================================

	val := validator.New()

	crmClient := hubspot.New(hubspot.Config{
		AccessToken:       cfg.GetHubSpotAccessToken(),
		BaseURL:           cfg.GetHubSpotBaseURL(),
		RequestsPerSecond: cfg.GetHubSpotRequestsPerSecond(),
		Timeout:           cfg.GetCollaboratorTimeout(),
	}, log)

	chat := slack.New(slack.Config{
		BotToken:  cfg.GetSlackBotToken(),
		ChannelID: cfg.GetSlackChannelID(),
		BaseURL:   cfg.GetSlackAPIBaseURL(),
		Timeout:   cfg.GetCollaboratorTimeout(),
	}, log)

	llm := agent.NewModel(cfg)
	scorer, err := agent.NewScorer(llm, val)
	if err != nil {
		panic("failed to initialize scorer: " + err.Error())
	}
	drafter, err := agent.NewDrafter(llm, val)
	if err != nil {
		panic("failed to initialize drafter: " + err.Error())
	}

	sender := email.NewMultiSender(crmClient, email.NewSMTPSender(cfg), log)
	log.Info("follow-up delivery configured", "channels", sender.Channels())

	// ========================================================================
	// Domain modules
	// ========================================================================

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		CRM:        adapters.NewCRMAdapter(crmClient),
		Scorer:     scorer,
		Drafter:    drafter,
		Cards:      chat,
		Store:      recordStore,
		Thresholds: cfg.GetThresholds(),
		Validator:  val,
		Bus:        eventBus,
		Log:        log,
	}, pipeline.Options{
		Concurrency: cfg.GetPipelineConcurrency(),
		Policy:      pipeline.ParseFailurePolicy(cfg.GetPipelineFailurePolicy()),
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
	})
	pipelineModule := pipeline.NewModule(pipeline.NewHandler(orchestrator, recordStore, log))

	replay, closeReplay := initReplayGuard(ctx, cfg, log)
	defer closeReplay()

	// Runs first on exit: in-flight handlers finish before the sinks close.
	defer eventBus.Wait()

	executor := approval.NewExecutor(recordStore, sender, chat, eventBus, log)
	approvalModule := approval.NewModule(approval.NewHandler(
		executor,
		approval.NewVerifier(cfg.GetSlackSigningSecret()),
		replay,
		val,
		log,
	))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   recordStore,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			pipelineModule,
			approvalModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, func()) {
	if cfg.GetStoreBackend() != config.StoreBackendPostgres {
		fileStore, err := store.OpenFileStore(cfg.GetDataDir())
		if err != nil {
			panic("failed to open record store: " + err.Error())
		}
		log.Info("record store opened", "path", cfg.GetDataDir()+"/"+store.FileName)
		return fileStore, func() {}
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}

	if err := db.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		panic("failed to run migrations: " + err.Error())
	}
	return store.NewPostgresStore(pool), pool.Close
}

func initReplayGuard(ctx context.Context, cfg config.SchedulerConfig, log *logger.Logger) (approval.ReplayGuard, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; callback replay protection disabled")
		return nil, func() {}
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		panic("invalid REDIS_URL: " + err.Error())
	}
	if cfg.GetRedisTLSInsecure() && opt.TLSConfig != nil {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	client := redis.NewClient(opt)

	guard := approval.NewRedisReplayGuard(client)
	if err := guard.Ping(ctx); err != nil {
		log.Warn("redis unreachable at startup; replay checks will fail until it recovers", "error", err)
	}
	return guard, func() { _ = client.Close() }
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
