package bootstrap

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/SantiagoCTB/whatsapp-ia/internal/config"
	"github.com/SantiagoCTB/whatsapp-ia/internal/controller"
	"github.com/SantiagoCTB/whatsapp-ia/internal/pkg/logger"
	"github.com/SantiagoCTB/whatsapp-ia/internal/repository/implementation"
	"github.com/SantiagoCTB/whatsapp-ia/internal/service"
	"github.com/SantiagoCTB/whatsapp-ia/internal/worker"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/catalog"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/embedding"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/ingest"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/ingest/ocr"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/llm/factory"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/rag"
	"github.com/SantiagoCTB/whatsapp-ia/pkg/whatsapp"

	pktNats "github.com/SantiagoCTB/whatsapp-ia/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const ingestTopic = "catalog.ingest"

type Container struct {
	// Controllers
	WebhookController controller.IWebhookController
	CatalogController controller.ICatalogController

	// Background components (exposed for main.go to run)
	AIWorker    *worker.AIWorker
	IngestQueue *ingest.Queue

	// Exposed for graceful shutdown
	DebounceService service.IDebounceService
	NatsPublisher   *pktNats.Publisher
	Logger          logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 1. Repositories
	ruleRepo := implementation.NewRuleRepository(db)
	stateRepo := implementation.NewChatStateRepository(db)
	messageRepo := implementation.NewMessageRepository(db)
	settingsRepo := implementation.NewAISettingsRepository(db)
	aiLogRepo := implementation.NewAILogRepository(db)
	roleRepo := implementation.NewChatRoleRepository(db)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Ai.OpenAIBaseURL, cfg.Ai.OpenAIAPIKey, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 3.5 Infrastructure
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	entities := catalog.DefaultIndex()
	if cfg.Ingest.EntityNames != "" {
		entities = catalog.NewIndex(strings.Split(cfg.Ingest.EntityNames, ","))
	}

	// 4. Transport and responder
	waClient := whatsapp.NewClient(
		cfg.WhatsApp.Token,
		cfg.WhatsApp.PhoneNumberID,
		cfg.WhatsApp.APIVersion,
		&outboundRecorder{messages: messageRepo},
	)

	responder := rag.NewResponder(
		rag.Config{
			BasePath:          cfg.Ai.IndexBasePath,
			TopK:              cfg.Ai.TopK,
			CacheTTL:          time.Duration(cfg.Ai.CacheTTL) * time.Second,
			MaxSentences:      cfg.Ai.MaxSentences,
			MaxChars:          cfg.Ai.MaxChars,
			EmptyIndexMessage: cfg.Ai.EmptyIndexMessage,
		},
		embeddingProvider,
		llmProvider,
		entities,
		rdb,
		&interactionSink{logs: aiLogRepo, log: sysLogger},
	)

	// 5. Flow engine
	registry := service.NewHandlerRegistry()
	if rules, err := ruleRepo.FindAll(context.Background()); err != nil {
		log.Printf("[WARN] rule preload failed, handler validation skipped: %v", err)
	} else if err := registry.EnsureKnown(rules); err != nil {
		log.Fatalf("[FATAL] rule configuration invalid: %v", err)
	}

	var eventPub service.EventPublisher
	if natsPub != nil {
		eventPub = natsPub
	}

	flowService := service.NewFlowService(
		cfg.Flow,
		ruleRepo,
		stateRepo,
		roleRepo,
		registry,
		waClient,
		eventPub,
		sysLogger,
	)
	debounceService := service.NewDebounceService(cfg.Flow.DebounceWindow, flowService, sysLogger)
	webhookService := service.NewWebhookService(
		messageRepo,
		stateRepo,
		flowService,
		debounceService,
		service.NewGlobalCommands(),
		sysLogger,
	)

	// 6. Ingestion pipeline
	renderer := ingest.NewPageRenderer(
		cfg.Ingest.PageImageDir,
		cfg.Ingest.OcrDPI,
		cfg.Ingest.PageImageScale,
		cfg.Ingest.PageImageFormat,
		cfg.Ingest.PageImageQuality,
	)
	pipeline := &ingest.Pipeline{
		Embedder: embeddingProvider,
		Entities: entities,
		Extractor: &ingest.Extractor{
			OcrBackends: []ocr.Backend{ocr.NewTesseract()},
			OcrLang:     cfg.Ingest.OcrLang,
			Renderer:    renderer,
		},
		Renderer:       renderer,
		Store:          &catalogStoreAdapter{settings: settingsRepo, messages: messageRepo},
		BasePath:       cfg.Ai.IndexBasePath,
		ImageURLPrefix: strings.TrimRight(cfg.App.BaseURL, "/") + "/static/catalog_pages",
		BatchSize:      cfg.Ingest.EmbedBatchSize,
		Similarity:     cfg.Ingest.ComboSimilarity,
	}
	queue := ingest.NewQueue(pubSub, ingestTopic, pipeline)

	// 7. Worker
	var workerPub worker.EventPublisher
	if natsPub != nil {
		workerPub = natsPub
	}
	aiWorker := worker.NewAIWorker(
		cfg.Ai,
		settingsRepo,
		messageRepo,
		stateRepo,
		ruleRepo,
		responder,
		waClient,
		entities,
		workerPub,
		sysLogger,
	)

	return &Container{
		WebhookController: controller.NewWebhookController(cfg.WhatsApp.VerifyToken, webhookService, sysLogger),
		CatalogController: controller.NewCatalogController(queue),

		AIWorker:    aiWorker,
		IngestQueue: queue,

		DebounceService: debounceService,
		NatsPublisher:   natsPub,
		Logger:          sysLogger,
	}
}
