package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/adityaverma/docuchat/internal/api/handlers"
	"github.com/adityaverma/docuchat/internal/api/middleware"
	"github.com/adityaverma/docuchat/internal/auth"
	"github.com/adityaverma/docuchat/internal/config"
	"github.com/adityaverma/docuchat/internal/embedding"
	"github.com/adityaverma/docuchat/internal/ingest"
	"github.com/adityaverma/docuchat/internal/llm"
	"github.com/adityaverma/docuchat/internal/memory"
	"github.com/adityaverma/docuchat/internal/queue"
	"github.com/adityaverma/docuchat/internal/rag"
	"github.com/adityaverma/docuchat/internal/vectorstore"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
	llmGW llm.Gateway
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		llmGW: llm.NewGateway(cfg.LLM),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.Retrieval)
	index := vectorstore.NewPgVectorIndex(rt.db)
	docs := ingest.NewRepository(rt.db)
	queueClient := queue.NewClient(rt.cfg.Redis)
	history := memory.NewRedisStore(rt.redis, rt.cfg.Memory.Window, rt.cfg.Memory.TTL)

	var relevance rag.RelevanceModel
	if rt.cfg.LLM.RelevanceModel != "" {
		relevance = rag.NewLLMRelevanceModel(rt.llmGW, rt.cfg.LLM.RelevanceModel)
	}

	retriever := rag.NewConfidenceRetriever(
		rag.NewRetriever(embedSvc, index, rt.cfg.Retrieval),
		rag.NewScorer(relevance),
	)
	model := rag.NewGatewayModel(rt.llmGW, rt.cfg.LLM.DefaultProvider, rt.cfg.LLM.DefaultModel)
	generator := rag.NewSafeGenerator(model)
	engine := rag.NewEngine(embedSvc)
	pipeline := rag.NewPipeline(retriever, generator, engine, history)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		chatH := handlers.NewChatHandler(pipeline)
		r.Post("/chat", chatH.Chat)
		r.Post("/chat/stream", chatH.ChatStream)
		r.Post("/search", chatH.Search)

		docH := handlers.NewDocumentHandler(docs, index, queueClient, rt.cfg.Ingest)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.Get("/{id}/status", docH.Status)
		})
	})

	return r
}
