// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"familyski-workers/internal/common/aws"
	"familyski-workers/internal/common/camunda"
	"familyski-workers/internal/common/cms"
	"familyski-workers/internal/common/config"
	"familyski-workers/internal/common/database"
	"familyski-workers/internal/common/genai"
	"familyski-workers/internal/common/logger"
	"familyski-workers/internal/common/observability"
	"familyski-workers/internal/common/search"
	"familyski-workers/internal/scoring"
	"familyski-workers/internal/store"

	// Discovery Workers (2)
	dr "familyski-workers/internal/workers/discovery/discover-resorts"
	rr "familyski-workers/internal/workers/discovery/research-resort"

	// Content Worker (1)
	gc "familyski-workers/internal/workers/content/generate-content"

	// Scoring Worker (1)
	sr "familyski-workers/internal/workers/scoring/score-resort"

	// Publishing Worker (1)
	pr "familyski-workers/internal/workers/publishing/publish-resort"

	// Notification Worker (1)
	nr "familyski-workers/internal/workers/notification/notify-review"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Camunda client with retry ---
	// NewClientWithConfig verifies the broker with a topology request, so a
	// successful return means the connection is actually usable.
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Camunda connection")

	if err != nil {
		zapLog.Fatal("camunda failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Camunda connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Shared pipeline dependencies ---
	st := store.New(pg.GetDB())

	genaiClient := genai.NewClient(&genai.Config{
		BaseURL:     cfg.APIs.GenAI.BaseURL,
		APIKey:      cfg.APIs.GenAI.APIKey,
		MaxRetries:  cfg.APIs.GenAI.MaxRetries,
		MaxTokens:   cfg.APIs.GenAI.MaxTokens,
		Temperature: cfg.APIs.GenAI.Temperature,
	})

	searchClient := search.NewClient(&search.Config{
		BaseURL:    cfg.APIs.WebSearch.BaseURL,
		APIKey:     cfg.APIs.WebSearch.APIKey,
		EngineID:   cfg.APIs.WebSearch.EngineID,
		Timeout:    config.GetDuration(cfg.APIs.WebSearch.Timeout),
		MaxResults: cfg.Research.MaxResultsPerTopic,
	})

	cmsClient := cms.NewClient(
		cfg.APIs.CMS.BaseURL,
		cfg.APIs.CMS.TokenURL,
		cfg.APIs.CMS.ClientID,
		cfg.APIs.CMS.ClientSecret,
		config.GetDuration(cfg.APIs.CMS.Timeout),
	)

	contentAssessor := scoring.NewContentAssessor(genaiClient, log)
	reviewAssessor := scoring.NewReviewAssessor(genaiClient, log)

	// Notification channel clients are only built when the notify-review
	// worker will actually run with that channel on.
	var sesClient *aws.SESClient
	var snsClient *aws.SNSClient
	if config.IsWorkerEnabled(cfg, nr.TaskType) {
		if cfg.Notifications.Email.Enabled {
			sesClient, err = aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("failed to create SES client", zap.Error(err))
			}
		}
		if cfg.Notifications.SNS.Enabled {
			snsClient, err = aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("failed to create SNS client", zap.Error(err))
			}
		}
	}

	zapLog.Info("All external service clients initialized")

	// --- START: Register pipeline workers ---
	var workers []*camunda.CamundaWorker

	// --- 1. Discovery Workers (2) ---
	if wcfg := config.GetWorkerConfig(cfg, dr.TaskType); wcfg.Enabled {
		handler := dr.NewHandler(
			&dr.Config{
				Timeout:       config.GetDuration(wcfg.Timeout),
				MaxCandidates: 10,
			},
			st, searchClient, genaiClient, log,
		)
		workers = append(workers, startWorker(zeebeClient, dr.TaskType, wcfg, handler.Handle, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, rr.TaskType); wcfg.Enabled {
		handler := rr.NewHandler(
			&rr.Config{
				Timeout:            config.GetDuration(wcfg.Timeout),
				CacheTTL:           config.GetDuration(cfg.Research.CacheTTL),
				MaxResultsPerTopic: cfg.Research.MaxResultsPerTopic,
			},
			st, searchClient, genaiClient, redis, log,
		)
		workers = append(workers, startWorker(zeebeClient, rr.TaskType, wcfg, handler.Handle, zapLog))
	}

	// --- 2. Content Worker (1) ---
	if wcfg := config.GetWorkerConfig(cfg, gc.TaskType); wcfg.Enabled {
		handler := gc.NewHandler(
			&gc.Config{
				Timeout:          config.GetDuration(wcfg.Timeout),
				SectionMaxTokens: 700,
				Temperature:      0.6,
			},
			st, genaiClient, log,
		)
		workers = append(workers, startWorker(zeebeClient, gc.TaskType, wcfg, handler.Handle, zapLog))
	}

	// --- 3. Scoring Worker (1) ---
	if wcfg := config.GetWorkerConfig(cfg, sr.TaskType); wcfg.Enabled {
		handler := sr.NewHandler(
			&sr.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				AssessorTimeout: 30 * time.Second,
			},
			st, contentAssessor, reviewAssessor, log,
		)
		workers = append(workers, startWorker(zeebeClient, sr.TaskType, wcfg, handler.Handle, zapLog))
	}

	// --- 4. Publishing Worker (1) ---
	if wcfg := config.GetWorkerConfig(cfg, pr.TaskType); wcfg.Enabled {
		handler := pr.NewHandler(
			&pr.Config{
				Timeout:          config.GetDuration(wcfg.Timeout),
				PublishThreshold: cfg.Scoring.PublishThreshold,
				IndexName:        cfg.Publishing.IndexName,
				SitePathBase:     cfg.Publishing.SitePathBase,
			},
			st, esClient.Client, cmsClient, redis, log,
		)
		workers = append(workers, startWorker(zeebeClient, pr.TaskType, wcfg, handler.Handle, zapLog))
	}

	// --- 5. Notification Worker (1) ---
	if wcfg := config.GetWorkerConfig(cfg, nr.TaskType); wcfg.Enabled {
		handler := nr.NewHandler(
			&nr.Config{
				Timeout:        config.GetDuration(wcfg.Timeout),
				EmailEnabled:   cfg.Notifications.Email.Enabled,
				FromEmail:      cfg.Notifications.Email.FromEmail,
				EditorialEmail: cfg.Notifications.Email.EditorialEmail,
				SNSEnabled:     cfg.Notifications.SNS.Enabled,
				TopicARN:       cfg.Notifications.SNS.TopicARN,
			},
			sesClient, snsClient, log,
		)
		workers = append(workers, startWorker(zeebeClient, nr.TaskType, wcfg, handler.Handle, zapLog))
	}

	zapLog.Info("All pipeline workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	// Close subscriptions first so in-flight jobs drain before the
	// connection goes away.
	for _, w := range workers {
		w.Close()
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Camunda client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc camunda.JobHandlerFunc, log *zap.Logger) *camunda.CamundaWorker {
	return camunda.NewWorker(
		client,
		taskType,
		wcfg.MaxJobsActive,
		config.GetDuration(wcfg.Timeout),
		handlerFunc,
		log,
	)
}
