package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "nursemate/docs"
	"nursemate/internal/ai"
	"nursemate/internal/config"
	"nursemate/internal/handler"
	"nursemate/internal/pkg/cache"
	"nursemate/internal/pkg/jwt"
	"nursemate/internal/pkg/metrics"
	"nursemate/internal/pkg/mongodb"
	"nursemate/internal/pkg/taskqueue"
	"nursemate/internal/pkg/tracing"
	"nursemate/internal/repository"
	"nursemate/internal/server/middleware"
	"nursemate/internal/service"
)

// Components 路由依赖，New 负责构造，测试可以直接注入
type Components struct {
	Chat          handler.Asker
	Conversations handler.ConversationReader
	Verifier      middleware.TokenValidator
	Readiness     map[string]handler.Pinger
	Registry      *prometheus.Registry
	Metrics       *metrics.ChatMetrics
}

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine

	mongo    *mongodb.Client
	redis    *cache.RedisCache
	aiClient *ai.Client
	queue    *taskqueue.Queue
	shutdown func(context.Context) error
}

// New 创建服务器实例
// MongoDB 是必需的；Redis 不可用时上下文缓存降级为关闭
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	// 追踪
	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化 MongoDB
	mongoClient, err := mongodb.New(ctx, &cfg.Mongo)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	// 创建索引
	if err := mongodb.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, context cache disabled")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	// AI 客户端
	aiClient, err := ai.NewClient(ctx, cfg)
	if err != nil {
		_ = mongoClient.Close(ctx)
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("init ai client: %w", err)
	}
	log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("initialized AI client")

	verifier, err := jwt.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTPublicKey)
	if err != nil {
		_ = mongoClient.Close(ctx)
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	// 指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	chatMetrics := metrics.New(registry)

	queue := taskqueue.New(&cfg.Queue, taskqueue.WithMetrics(chatMetrics))

	// 仓库与服务
	db := mongoClient.Database()
	conversationRepo := repository.NewConversationRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	contextRepo := repository.NewContextCacheRepo(redisCache, cfg.Chat.RecentTurns)

	deps := service.ChatDeps{
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Cache:         contextRepo,
		Answer:        aiClient.Answer(),
		Summarizer:    aiClient.Summary(),
		Tasks:         queue,
		Metrics:       chatMetrics,
	}
	// 避免把 nil 指针装进接口
	if r := aiClient.Retriever(); r != nil {
		deps.Retriever = r
	}

	readiness := map[string]handler.Pinger{"mongo": mongoClient, "redis": nil}
	if redisCache != nil {
		readiness["redis"] = redisCache
	}

	srv := NewWithComponents(cfg, &Components{
		Chat:          service.NewChatService(deps, &cfg.Chat),
		Conversations: service.NewConversationService(conversationRepo, messageRepo, contextRepo),
		Verifier:      verifier,
		Readiness:     readiness,
		Registry:      registry,
		Metrics:       chatMetrics,
	})
	srv.mongo = mongoClient
	srv.redis = redisCache
	srv.aiClient = aiClient
	srv.queue = queue
	srv.shutdown = shutdownTracing
	return srv, nil
}

// NewWithComponents 使用已构造的依赖创建服务器
func NewWithComponents(cfg *config.Config, comps *Components) *Server {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
	}
	srv.setupRoutes(comps)
	return srv
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(comps *Components) {
	// 全局中间件
	s.engine.Use(middleware.Recovery(comps.Metrics))
	s.engine.Use(middleware.RequestID())
	if s.cfg.Tracing.Enabled {
		s.engine.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS(&s.cfg.CORS))

	// 健康检查
	healthHandler := handler.NewHealthHandler(comps.Readiness)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// 指标
	if comps.Registry != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(comps.Registry, promhttp.HandlerOpts{})))
	}

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		chatHdl := handler.NewChatHandler(comps.Chat, comps.Metrics, s.cfg.Chat.KeepAlive)
		convHdl := handler.NewConversationHandler(comps.Conversations)

		// 需要认证的接口
		chat := v1.Group("/chat")
		chat.Use(middleware.Auth(comps.Verifier, s.cfg.Auth.AllowQueryToken))
		{
			chat.GET("/stream", chatHdl.StreamGet)
			chat.POST("/stream", chatHdl.StreamPost)
			chat.GET("/conversations", convHdl.List)
			chat.GET("/conversations/:conversationId/messages", convHdl.Messages)
			chat.GET("/messages", convHdl.MessagesByQuery)
			chat.GET("/context", convHdl.Context)
		}
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		s.close(shutdownCtx)
		return err
	case err := <-errCh:
		s.close(context.Background())
		return err
	}
}

// close 按依赖顺序释放资源：先排空后台任务，再关闭存储
func (s *Server) close(ctx context.Context) {
	if s.queue != nil {
		if err := s.queue.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("failed to drain task queue")
		}
	}
	if s.aiClient != nil {
		if err := s.aiClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close AI client")
		}
	}
	if s.mongo != nil {
		if err := s.mongo.Close(ctx); err != nil {
			log.Error().Err(err).Msg("failed to close MongoDB connection")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("failed to flush traces")
		}
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
