package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/hostops/concierge/internal/api"
	"github.com/hostops/concierge/internal/autoreply"
	"github.com/hostops/concierge/internal/autosend"
	"github.com/hostops/concierge/internal/classify"
	"github.com/hostops/concierge/internal/config"
	"github.com/hostops/concierge/internal/embedding"
	"github.com/hostops/concierge/internal/events"
	"github.com/hostops/concierge/internal/llm"
	"github.com/hostops/concierge/internal/mailbox"
	"github.com/hostops/concierge/internal/notify"
	"github.com/hostops/concierge/internal/pipeline"
	"github.com/hostops/concierge/internal/pkg/distlock"
	"github.com/hostops/concierge/internal/repository/postgres"
	"github.com/hostops/concierge/internal/service/inbox"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from a stale process occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Concierge server starting (OTA inbox + auto-reply pipeline)")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
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

	// Redis is optional: locks fall back to PG advisory locks and the LLM
	// rate limiter is bypassed when it is absent.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis unreachable (%s): %v — falling back to PG advisory locks", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s", cfg.Redis.Addr)
		}
		pingCancel()
	}

	// Repositories
	messageRepo := postgres.NewMessageRepo(db)
	replyLogRepo := postgres.NewReplyLogRepo(db)
	propertyRepo := postgres.NewPropertyRepo(db)
	statsRepo := postgres.NewStatsRepo(db)
	notificationRepo := postgres.NewNotificationRepo(db)
	embeddingRepo := postgres.NewEmbeddingRepo(db)

	inboxSvc := inbox.NewService(messageRepo)
	gate := autosend.NewGate(statsRepo, cfg.AutoSend.MinTotal, cfg.AutoSend.MinRate)

	// LLM backend: OpenAI preferred, Bedrock as the AWS-only alternative.
	var llmClient llm.Client
	switch {
	case cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "":
		llmClient = llm.NewOpenAIClient(cfg.OpenAI)
		log.Printf("OpenAI drafting enabled (model: %s)", cfg.OpenAI.Model)
	case cfg.Bedrock.Enabled:
		bc, err := llm.NewBedrockClient(ctx, cfg.Bedrock)
		if err != nil {
			log.Printf("Warning: Bedrock init failed, drafting falls back to templates: %v", err)
		} else {
			llmClient = bc
			log.Printf("Bedrock drafting enabled (model: %s)", cfg.Bedrock.ModelID)
		}
	default:
		log.Println("No LLM configured — template drafting only")
	}
	if llmClient != nil && redisClient != nil && cfg.RateLimit.LLMPerMinute > 0 {
		llmClient = llm.NewRateLimitedClient(llmClient, redisClient, cfg.RateLimit.LLMPerMinute)
	}

	// Few-shot retrieval needs the embedding backend; without it drafting
	// still works, just without exemplars.
	var embeddings *embedding.Store
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		embedder := embedding.NewOpenAIEmbedder(cfg.OpenAI)
		embeddings = embedding.NewStore(embedder, embeddingRepo, cfg.OpenAI.EmbeddingDimensions)
		log.Printf("Embedding store enabled (model: %s, dim: %d)", cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDimensions)
	}

	// Staff alert paging over SES, best-effort.
	var alertMailer notify.AlertMailer
	if cfg.SES.Enabled {
		mailer, err := notify.NewSESMailer(ctx, cfg.SES)
		if err != nil {
			log.Printf("Warning: SES init failed, staff alerts will not page: %v", err)
		} else {
			alertMailer = mailer
			log.Printf("SES alert paging enabled (%d recipients)", len(cfg.SES.AlertRecipients))
		}
	}
	notifySvc := notify.NewService(notificationRepo, alertMailer)

	hub := events.NewHub()

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
		Hub:             hub,
		Notifier:        notifySvc,
		OperatorAddress: cfg.Mailbox.OperatorAddress,
		DefaultLocale:   cfg.Reply.DefaultLocale,
		UseLLM:          cfg.Pipeline.UseLLM,
	})

	lock := distlock.NewLock(redisClient, db, "concierge:pipeline:poll", 90*time.Second)
	coordinator := pipeline.NewCoordinator(mailClient, inboxSvc, propertyRepo, classifier, replies, hub, lock, pipeline.Config{
		Query:        cfg.Mailbox.Query,
		Label:        cfg.Mailbox.Label,
		BatchMax:     cfg.Pipeline.BatchMax,
		LookbackDays: cfg.Pipeline.LookbackDays,
		Workers:      cfg.Pipeline.WorkerCount,
		QueueCap:     cfg.Pipeline.QueueSize,
	})
	go coordinator.RunForever(ctx, cfg.Pipeline.PollInterval())

	handlers := api.NewHandlers(inboxSvc, replies, notifySvc, coordinator, api.Pinger{DB: db, Redis: redisClient})
	server := api.NewServer(cfg.Server, handlers, hub)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()
	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Server stopped")
}
