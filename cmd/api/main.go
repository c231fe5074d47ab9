package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"anyrag/controllers"
	"anyrag/core"
	"anyrag/internal/ingest"
	"anyrag/internal/parse"
	"anyrag/internal/retrieval"
	"anyrag/models"
)

func main() {
	godotenv.Load()

	cfg, err := core.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := core.NewLogger(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		panic(err)
	}

	// connect to the database
	db, err := core.InitDB()
	if err != nil {
		panic(err)
	}

	// auto migrate the database
	err = db.AutoMigrate(
		&models.Document{},
		&models.DocumentChunk{},
		&models.AccessToken{},
		&models.QueryLog{},
	)
	if err != nil {
		panic(err)
	}

	if err := core.EnsureVectorSchema(db, cfg.EmbeddingDim); err != nil {
		panic(err)
	}

	server, err := createServer(db, cfg, logger)
	if err != nil {
		panic(err)
	}

	logger.Infow("starting server",
		"addr", cfg.Addr(),
		"workers", cfg.Workers,
		"parser", cfg.Parser,
		"parse_method", cfg.ParseMethod,
		"mineru_available", parse.MinerUAvailable(),
		"llm_model", cfg.LLMModel,
		"vision_model", cfg.VisionModel,
		"embedding_model", cfg.EmbeddingModel,
		"embedding_dim", cfg.EmbeddingDim,
		"auth_enabled", cfg.AuthEnabled(),
	)

	if err := server.Run(cfg.Addr()); err != nil {
		panic(err)
	}
}

func createServer(db *gorm.DB, cfg *core.Config, logger *zap.SugaredLogger) (*gin.Engine, error) {
	// set up http server
	engine := gin.Default()
	if err := engine.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	engine.Use(corsMiddleware(cfg.CORSOrigins))

	if cfg.EmbeddingBinding != "openai" {
		logger.Warnf("Embedding binding %v not supported, using openai", cfg.EmbeddingBinding)
	}

	cache, err := retrieval.OpenCache(cfg.WorkingDir)
	if err != nil {
		// The server can run without the cache; embeddings just get
		// recomputed.
		logger.Warnw("embedding cache unavailable", "error", err)
		cache = nil
	}

	embedder := retrieval.NewEmbedder(cfg, cache, logger.With("component", "embedder"))
	generator := retrieval.NewGenerator(cfg, logger.With("component", "generator"))
	retriever := retrieval.NewRetriever(db, embedder, cfg, logger.With("component", "retriever"))

	parser := parse.NewParser(parse.Options{
		Parser:          cfg.Parser,
		ParseMethod:     cfg.ParseMethod,
		OutputDir:       cfg.OutputDir,
		ModelCacheDir:   cfg.ModelCacheDir,
		ModelScopeCache: cfg.ModelScopeCache,
	}, logger.With("component", "parser"))

	processor, err := ingest.NewProcessor(db, parser, embedder, generator, cfg, logger.With("component", "processor"))
	if err != nil {
		return nil, err
	}

	router := controllers.Router{
		HealthController: &controllers.HealthController{
			DB:     db,
			Logger: logger.With("controller", "health"),
		},
		AuthController: &controllers.AuthController{
			DB:          db,
			Logger:      logger.With("controller", "auth"),
			Accounts:    cfg.Accounts,
			TokenExpiry: time.Duration(cfg.TokenExpireHours) * time.Hour,
		},
		DocumentsController: &controllers.DocumentsController{
			DB:             db,
			Logger:         logger.With("controller", "documents"),
			Processor:      processor,
			InputDir:       cfg.InputDir,
			DefaultWorkers: cfg.MaxConcurrentFiles,
		},
		QueriesController: &controllers.QueriesController{
			DB:        db,
			Logger:    logger.With("controller", "queries"),
			Retriever: retriever,
			Generator: generator,
		},
		DB:          db,
		Logger:      logger,
		AuthEnabled: cfg.AuthEnabled(),
	}
	router.RegisterRoutes(engine)

	return engine, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
