package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/config"
	"github.com/xavierca1/eva-followup/internal/entity"
	"github.com/xavierca1/eva-followup/internal/infra/cache"
	"github.com/xavierca1/eva-followup/internal/infra/database"
	"github.com/xavierca1/eva-followup/internal/infra/http/handlers"
	"github.com/xavierca1/eva-followup/internal/infra/integration/airtable"
	"github.com/xavierca1/eva-followup/internal/infra/integration/retell"
	"github.com/xavierca1/eva-followup/internal/infra/integration/whatsapp"
	"github.com/xavierca1/eva-followup/internal/infra/logger"
	"github.com/xavierca1/eva-followup/internal/infra/mail"
	"github.com/xavierca1/eva-followup/internal/infra/queue"
	"github.com/xavierca1/eva-followup/internal/infra/worker"
	"github.com/xavierca1/eva-followup/internal/usecase"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", os.Getenv("APP_ENV"))
		log.Fatal().Err(err).Msg("❌ configuração inválida")
	}
	logger.Setup(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.HealthCheck{}

	// 1. Banco
	var db *sql.DB
	if cfg.NeedsDatabase() {
		db, err = database.NewDBConnection(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ falha ao conectar no Postgres")
		}
		defer db.Close()
		checks["database"] = db.PingContext
	}

	// 2. Lead store
	var store entity.LeadRepositoryInterface
	var finder entity.LeadFinder
	switch cfg.LeadStore {
	case config.StoreAirtable:
		client := airtable.NewClient(cfg.AirtableAPIKey, cfg.AirtableBaseID, cfg.AirtableTable, "")
		store, finder = client, client
	default:
		repo := database.NewLeadRepository(db)
		store, finder = repo, repo
	}

	// 3. Provedores
	caller := retell.NewClient(cfg.RetellAPIKey, cfg.RetellAgentID, cfg.RetellFromNumber, cfg.RetellBaseURL, cfg.CallTimeout)
	messenger := whatsapp.NewClient(cfg.WhatsAppAccessToken, cfg.WhatsAppPhoneID, cfg.WhatsAppBaseURL)

	policy := usecase.FollowUpPolicy{
		Delay:                 cfg.FollowUpDelay,
		SkipWhenCallSucceeded: cfg.SkipOnCallSuccess,
		IdempotencyWindow:     cfg.IdempotencyWindow,
		FallbackPhone:         cfg.FallbackPhoneNumber,
		BrandName:             cfg.BrandName,
	}
	sendFollowUpUC := usecase.NewSendFollowUpUseCase(store, messenger, policy)

	// 4. Agendador do backup de WhatsApp + quem consome os jobs vencidos
	var wg sync.WaitGroup
	var scheduler usecase.FollowUpScheduler
	switch cfg.SchedulerBackend {
	case config.BackendRabbitMQ:
		rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ falha ao conectar no RabbitMQ")
		}
		defer rabbitMQ.Close()

		consumeCh, err := rabbitMQ.Conn.Channel()
		if err != nil {
			log.Fatal().Err(err).Msg("❌ falha ao abrir canal de consumo")
		}
		if err := consumeCh.Qos(1, 0, false); err != nil {
			log.Fatal().Err(err).Msg("❌ falha ao configurar prefetch")
		}

		scheduler = queue.NewDelayedScheduler(rabbitMQ.Ch)
		followUpWorker := queue.NewWorker(consumeCh, sendFollowUpUC)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := followUpWorker.Start(ctx, queue.QueueName); err != nil {
				log.Error().Err(err).Msg("❌ worker de follow-up parou")
			}
		}()

		checks["rabbitmq"] = func(context.Context) error {
			if rabbitMQ.Conn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}

	case config.BackendPostgres:
		jobs := database.NewFollowUpJobRepository(db)
		scheduler = jobs
		poller := worker.NewFollowUpPoller(jobs, sendFollowUpUC, cfg.FollowUpPollInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Start(ctx)
		}()

	default:
		timers := worker.NewTimerScheduler(sendFollowUpUC)
		defer timers.Stop()
		scheduler = timers
		log.Warn().Msg("⚠️ SCHEDULER_BACKEND=memory: follow-ups pendentes se perdem no restart")
	}

	// 5. Opcionais
	var guard usecase.IdempotencyGuard
	if cfg.IdempotencyWindow > 0 {
		redisGuard := cache.NewRedisGuard(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisGuard.Close()
		guard = redisGuard
		checks["redis"] = redisGuard.Ping
	}

	var notifier usecase.LeadNotifier
	if cfg.MailEnabled() {
		notifier = mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom, cfg.NotifyEmailTo)
	}

	// 6. UseCase + HTTP
	captureLeadUC := usecase.NewCaptureLeadUseCase(store, caller, scheduler, guard, notifier, policy)

	leadHandler := handlers.NewLeadHandler(captureLeadUC, finder, cfg.RateLimitPerMinute)
	defer leadHandler.Close()

	router := handlers.NewRouter(leadHandler, handlers.NewHealthHandler(scheduler.Name(), checks))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.CallTimeout + 15*time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("scheduler", scheduler.Name()).
			Str("lead_store", cfg.LeadStore).
			Dur("followup_delay", cfg.FollowUpDelay).
			Msg("🔥 Eva Follow-up rodando")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ servidor HTTP caiu")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 sinal recebido, encerrando")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("erro no shutdown do HTTP")
	}
	wg.Wait()
}
