package bootstrap

import (
	"context"
	"fmt"
	"log"

	"rag-chat-be/internal/config"
	"rag-chat-be/internal/controller"
	"rag-chat-be/internal/handler"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/workerpool"
	"rag-chat-be/internal/repository/implementation"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/internal/service"
	"rag-chat-be/internal/websocket"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/llm/factory"
	pktNats "rag-chat-be/pkg/nats"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/generation"
	"rag-chat-be/pkg/rag/retrieval"
	"rag-chat-be/pkg/rag/suggestion"
	"rag-chat-be/pkg/tokenizer"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController
	ChatSocketHandler      *handler.ChatSocketHandler

	// Background services, run by main.go
	WebSocketHub    *websocket.Hub
	Pipeline        service.IChatPipeline
	ConsumerService service.IConsumerService
	RetrievalCache  *retrieval.CachedEngine
	NatsSubscriber  *pktNats.Subscriber

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())
	wsLogger := logger.NewIsolatedLogger(cfg.App.SocketLogFilePath)
	c := &Container{Logger: sysLogger}

	// 2. In-process event bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. AI providers
	llmProvider, err := newLLMProvider(cfg.Ai)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	embeddingProvider, err := embedding.NewProvider(embedding.Config{
		Provider: cfg.Ai.EmbeddingProvider,
		BaseURL:  cfg.Ai.OllamaBaseURL,
		Model:    cfg.Ai.EmbeddingModel,
		APIKey:   embeddingKey(cfg.Ai),
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using Embedding Provider: %s", cfg.Ai.EmbeddingProvider)

	// 4. Retrieval
	engine, err := c.newRetrievalEngine(db, cfg.Retrieval, embeddingProvider)
	if err != nil {
		return nil, err
	}
	c.RetrievalCache = retrieval.NewCachedEngine(engine, cfg.Retrieval.CacheTTL)

	var translator retrieval.Translator
	if cfg.Retrieval.TranslateQueries {
		translator = retrieval.NewLLMTranslator(llmProvider, cfg.Retrieval.CacheTTL)
	}

	assistant := rag.NewAssistant(
		c.RetrievalCache,
		generation.NewLLMEngine(llmProvider, cfg.Pipeline.GenerationTimeout),
		suggestion.New(cfg.Pipeline.SuggestionProvider, suggestion.NewLLMGenerator(llmProvider)),
	)

	// 5. Infrastructure
	var natsPub *pktNats.Publisher
	if cfg.Nats.Enabled {
		if natsPub, err = pktNats.NewPublisher(cfg.Nats.URL); err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		} else {
			c.closers = append(c.closers, natsPub.Close)
		}
		if c.NatsSubscriber, err = pktNats.NewSubscriber(cfg.Nats.URL); err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
			c.NatsSubscriber = nil
		} else {
			c.closers = append(c.closers, c.NatsSubscriber.Close)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = newRedisClient(cfg.Redis.URL)
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// 6. Services
	conversationService := service.NewConversationService(uowFactory, tokenizer.NewCounter(), sysLogger)

	c.WebSocketHub = websocket.NewHub(conversationService, rdb, websocket.HubOptions{
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		InstanceID:     cfg.App.InstanceID,
	}, wsLogger)

	var bus service.EventBus
	if natsPub != nil {
		bus = natsPub
	}
	publisherService := service.NewPublisherService(service.TurnEventsTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, service.TurnEventsTopic, bus, sysLogger)

	c.Pipeline = service.NewChatPipeline(
		conversationService,
		assistant,
		translator,
		c.WebSocketHub,
		publisherService,
		workerpool.New(cfg.Pipeline.WorkerPoolSize),
		service.PipelineOptions{
			TopK:              cfg.Retrieval.TopK,
			HistoryLimit:      cfg.Pipeline.HistoryLimit,
			RetrievalTimeout:  cfg.Pipeline.RetrievalTimeout,
			GenerationTimeout: cfg.Pipeline.GenerationTimeout,
			SuggestionTimeout: cfg.Pipeline.SuggestionTimeout,
			MaxTokens:         cfg.Pipeline.MaxTokens,
			Temperature:       cfg.Pipeline.Temperature,
			DefaultLanguage:   cfg.Pipeline.DefaultLanguage,
			IndexLanguage:     cfg.Retrieval.IndexLanguage,
			TranslateQueries:  cfg.Retrieval.TranslateQueries,
			TranslateTimeout:  cfg.Retrieval.TranslateTimeout,
			NoAnswerPhrases:   cfg.Pipeline.NoAnswerPhrases,
		},
		sysLogger,
	)

	// 7. Transport
	router := handler.NewChatEventRouter(c.WebSocketHub, c.Pipeline, conversationService, cfg.Pipeline.HistoryPageSize, wsLogger)
	c.ChatSocketHandler = handler.NewChatSocketHandler(c.WebSocketHub, router, handler.SocketOptions{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, wsLogger)
	c.ConversationController = controller.NewConversationController(conversationService, cfg.Auth.JWTSecret)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func newLLMProvider(cfg config.AIConfig) (llm.LLMProvider, error) {
	fc := factory.Config{Provider: cfg.LLMProvider, Model: cfg.LLMModel}
	switch cfg.LLMProvider {
	case "ollama":
		fc.BaseURL = cfg.OllamaBaseURL
	case "openai":
		fc.BaseURL, fc.APIKey = cfg.OpenAIBaseURL, cfg.OpenAIAPIKey
	case "huggingface":
		fc.APIKey = cfg.HuggingFaceAPIKey
	}
	provider, err := factory.NewLLMProvider(fc)
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	return provider, nil
}

func embeddingKey(cfg config.AIConfig) string {
	switch cfg.EmbeddingProvider {
	case "gemini":
		return cfg.GoogleGeminiKey
	case "jina":
		return cfg.JinaAPIKey
	}
	return ""
}

func (c *Container) newRetrievalEngine(db *gorm.DB, cfg config.RetrievalConfig, embedder embedding.EmbeddingProvider) (retrieval.Engine, error) {
	switch cfg.Backend {
	case "qdrant":
		client, err := retrieval.NewQdrantClient(retrieval.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			MinScore:   cfg.MinScore,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		c.closers = append(c.closers, func() { _ = client.Close() })
		log.Printf("[INFO] Using Retrieval Backend: QDRANT (%s)", cfg.QdrantCollection)
		return retrieval.NewQdrantEngine(client, embedder, cfg.QdrantCollection, cfg.MinScore), nil
	case "pgvector", "":
		log.Printf("[INFO] Using Retrieval Backend: PGVECTOR")
		return retrieval.NewPgVectorEngine(embedder, implementation.NewDocumentChunkRepository(db), cfg.MinScore), nil
	default:
		return nil, fmt.Errorf("unsupported retrieval backend: %s", cfg.Backend)
	}
}

func newRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}
