package bootstrap

import (
	"context"
	"log"
	"time"

	"rag-agent-be/internal/config"
	"rag-agent-be/internal/controller"
	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/internal/service"
	"rag-agent-be/pkg/agent"
	"rag-agent-be/pkg/embedding"
	"rag-agent-be/pkg/ingestion"
	llmollama "rag-agent-be/pkg/llm/ollama"
	"rag-agent-be/pkg/memory"
	pktNats "rag-agent-be/pkg/nats"
	"rag-agent-be/pkg/retrieval"
	"rag-agent-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController      controller.IChatController
	KnowledgeController controller.IKnowledgeController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Event bus for off-request work
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// AI providers
	embeddingProvider := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	llmProvider := llmollama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.LLMModel)
	log.Printf("[INFO] Using Ollama at %s (llm=%s, embeddings=%s)", cfg.Ai.OllamaBaseURL, cfg.Ai.LLMModel, cfg.Ai.EmbeddingModel)

	// NATS (optional; the API works without the event bus)
	var eventsPub service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventsPub = natsPub
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// Domain components
	store := vectorstore.New(db, sysLogger)
	conversation := memory.NewConversationStore(rdb, sysLogger)
	gateway := retrieval.NewGateway(embeddingProvider, store, sysLogger)
	splitter := ingestion.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	pipeline := ingestion.NewPipeline(embeddingProvider, store, splitter, sysLogger)

	orchestrator := agent.NewOrchestrator(llmProvider, gateway, agent.Config{
		TopK:              cfg.Agent.TopK,
		MaxRetrievals:     cfg.Agent.MaxRetrievals,
		MaxGenerations:    cfg.Agent.MaxGenerations,
		HallucinationMode: cfg.Agent.HallucinationMode,
	}, sysLogger)

	// Services
	publisherService := service.NewPublisherService(cfg.App.SaveTurnTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.App.SaveTurnTopic, conversation, sysLogger)
	chatService := service.NewChatService(orchestrator, conversation, publisherService, eventsPub, sysLogger)
	knowledgeService := service.NewKnowledgeService(pipeline, eventsPub, sysLogger)

	// The first query pays for collection setup otherwise.
	go warmUp(store, sysLogger)

	return &Container{
		ChatController:      controller.NewChatController(chatService),
		KnowledgeController: controller.NewKnowledgeController(knowledgeService),
		ConsumerService:     consumerService,
		Logger:              sysLogger,
	}
}

func warmUp(store *vectorstore.Store, log logger.ILogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.EnsureCollection(ctx); err != nil {
		log.Warn("Bootstrap", "vector store warm-up failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	log.Info("Bootstrap", "vector store warmed up", nil)
}
