// The worker runs the ingest and drafting pipeline without the HTTP
// surface, for deployments that split the API and the poller. Leader
// election over the poll lock keeps multiple workers from double-fetching.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/hostops/concierge/internal/autoreply"
	"github.com/hostops/concierge/internal/autosend"
	"github.com/hostops/concierge/internal/classify"
	"github.com/hostops/concierge/internal/config"
	"github.com/hostops/concierge/internal/embedding"
	"github.com/hostops/concierge/internal/llm"
	"github.com/hostops/concierge/internal/mailbox"
	"github.com/hostops/concierge/internal/notify"
	"github.com/hostops/concierge/internal/pipeline"
	"github.com/hostops/concierge/internal/pkg/distlock"
	"github.com/hostops/concierge/internal/repository/postgres"
	"github.com/hostops/concierge/internal/service/inbox"
)

func main() {
	log.Println("Concierge pipeline worker starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis unreachable: %v — using PG advisory locks", err)
			redisClient.Close()
			redisClient = nil
		}
		pingCancel()
	}

	messageRepo := postgres.NewMessageRepo(db)
	replyLogRepo := postgres.NewReplyLogRepo(db)
	propertyRepo := postgres.NewPropertyRepo(db)
	statsRepo := postgres.NewStatsRepo(db)
	notificationRepo := postgres.NewNotificationRepo(db)
	embeddingRepo := postgres.NewEmbeddingRepo(db)

	inboxSvc := inbox.NewService(messageRepo)
	gate := autosend.NewGate(statsRepo, cfg.AutoSend.MinTotal, cfg.AutoSend.MinRate)

	var llmClient llm.Client
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		llmClient = llm.NewOpenAIClient(cfg.OpenAI)
	} else if cfg.Bedrock.Enabled {
		if bc, err := llm.NewBedrockClient(ctx, cfg.Bedrock); err != nil {
			log.Printf("Warning: Bedrock init failed: %v", err)
		} else {
			llmClient = bc
		}
	}
	if llmClient != nil && redisClient != nil && cfg.RateLimit.LLMPerMinute > 0 {
		llmClient = llm.NewRateLimitedClient(llmClient, redisClient, cfg.RateLimit.LLMPerMinute)
	}

	var embeddings *embedding.Store
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		embeddings = embedding.NewStore(embedding.NewOpenAIEmbedder(cfg.OpenAI), embeddingRepo, cfg.OpenAI.EmbeddingDimensions)
	}

	var alertMailer notify.AlertMailer
	if cfg.SES.Enabled {
		if mailer, err := notify.NewSESMailer(ctx, cfg.SES); err != nil {
			log.Printf("Warning: SES init failed: %v", err)
		} else {
			alertMailer = mailer
		}
	}
	notifySvc := notify.NewService(notificationRepo, alertMailer)

	var classifierLLM llm.Client
	if cfg.Pipeline.UseLLM {
		classifierLLM = llmClient
	}
	classifier := classify.NewIntentClassifier(classifierLLM)

	mailClient := mailbox.NewHTTPClient(ctx, cfg.Mailbox)

	replies := autoreply.NewService(autoreply.Options{
		Inbox:           inboxSvc,
		Logs:            replyLogRepo,
		Profiles:        propertyRepo,
		Classifier:      classifier,
		Gate:            gate,
		Embeddings:      embeddings,
		LLM:             llmClient,
		Sender:          mailClient,
		Notifier:        notifySvc,
		OperatorAddress: cfg.Mailbox.OperatorAddress,
		DefaultLocale:   cfg.Reply.DefaultLocale,
		UseLLM:          cfg.Pipeline.UseLLM,
	})

	lock := distlock.NewLock(redisClient, db, "concierge:pipeline:poll", 90*time.Second)
	coordinator := pipeline.NewCoordinator(mailClient, inboxSvc, propertyRepo, classifier, replies, nil, lock, pipeline.Config{
		Query:        cfg.Mailbox.Query,
		Label:        cfg.Mailbox.Label,
		BatchMax:     cfg.Pipeline.BatchMax,
		LookbackDays: cfg.Pipeline.LookbackDays,
		Workers:      cfg.Pipeline.WorkerCount,
		QueueCap:     cfg.Pipeline.QueueSize,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go coordinator.RunForever(ctx, cfg.Pipeline.PollInterval())
	log.Println("Pipeline worker running")

	<-done
	log.Println("Shutting down...")
	cancel()
	if redisClient != nil {
		redisClient.Close()
	}
	time.Sleep(500 * time.Millisecond) // let the current tick drain
	log.Println("Worker stopped")
}
