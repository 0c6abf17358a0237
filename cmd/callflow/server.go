package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/callflow/api/handlers"
	"github.com/BaSui01/callflow/audio/denoise"
	"github.com/BaSui01/callflow/call"
	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/conversation"
	"github.com/BaSui01/callflow/internal/cache"
	"github.com/BaSui01/callflow/internal/calllog"
	"github.com/BaSui01/callflow/internal/database"
	"github.com/BaSui01/callflow/internal/metrics"
	"github.com/BaSui01/callflow/internal/migration"
	"github.com/BaSui01/callflow/internal/server"
	"github.com/BaSui01/callflow/internal/telemetry"
	"github.com/BaSui01/callflow/internal/upstream"
	"github.com/BaSui01/callflow/journey"
	"github.com/BaSui01/callflow/speech"
	"github.com/BaSui01/callflow/transport"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装通话引擎与 HTTP 服务
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector

	providers *telemetry.Providers
	cache     *cache.Manager
	db        *database.PoolManager
	calls     *calllog.Store

	registry     *call.Registry
	orchestrator *call.Orchestrator
	media        *handlers.MediaStreamHandler
	health       *handlers.HealthHandler
	handler      http.Handler

	manager           *server.Manager
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器实例，collector 由调用方持有以便测试隔离指标命名空间
func NewServer(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Init 按依赖顺序初始化各组件，失败时释放已创建的资源
func (s *Server) Init(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"telemetry", s.initTelemetry},
		{"storage", s.initStorage},
		{"engine", s.initEngine},
		{"http", s.initHTTP},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			s.shutdown(ctx)
			return fmt.Errorf("init %s: %w", step.name, err)
		}
	}
	return nil
}

// Run 监听端口并阻塞到 ctx 结束，随后排空通话并释放资源
func (s *Server) Run(ctx context.Context) error {
	if err := s.manager.Listen(); err != nil {
		s.shutdown(ctx)
		return err
	}
	s.logger.Info("all servers started",
		zap.String("http_addr", s.manager.Addr("media")),
		zap.String("metrics_addr", s.manager.Addr("metrics")),
	)

	err := s.manager.Serve(ctx)
	s.shutdown(ctx)
	return err
}

// shutdown 在 ctx 结束后仍留出 ShutdownTimeout 用于清理
func (s *Server) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.Close(ctx)
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) initTelemetry(ctx context.Context) error {
	providers, err := telemetry.Init(ctx, s.cfg.Telemetry, s.logger,
		telemetry.WithVersion(Version),
		telemetry.WithAttributes(
			attribute.String("callflow.public_host", s.cfg.Server.PublicHost),
			attribute.String("callflow.default_language", s.cfg.Speech.DefaultLanguage),
		),
	)
	if err != nil {
		// 遥测失败不阻止接听电话
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	s.providers = providers
	return nil
}

// initStorage 连接可选的 Redis 与通话记录数据库
func (s *Server) initStorage(ctx context.Context) error {
	if s.cfg.Redis.Enabled {
		cc := cache.DefaultConfig()
		cc.Addr = s.cfg.Redis.Addr
		cc.Password = s.cfg.Redis.Password
		cc.DB = s.cfg.Redis.DB
		cc.PoolSize = s.cfg.Redis.PoolSize
		cc.MinIdleConns = s.cfg.Redis.MinIdleConns
		cc.TLS = s.cfg.Redis.TLS
		cc.DefaultTTL = s.cfg.Speech.PromptCacheTTL

		mgr, err := cache.NewManager(cc, s.logger)
		if err != nil {
			s.logger.Warn("redis not available, prompt audio cached in process only", zap.Error(err))
		} else {
			mgr.SetObserver(s.collector)
			s.cache = mgr
		}
	}

	if s.cfg.Database.Enabled {
		if s.cfg.Database.AutoMigrate {
			if err := s.migrate(ctx); err != nil {
				s.logger.Warn("schema migration failed, call history disabled", zap.Error(err))
				return nil
			}
		}
		gdb, err := database.Open(s.cfg.Database, s.logger)
		if err != nil {
			s.logger.Warn("database not available, call history disabled", zap.Error(err))
			return nil
		}
		pm, err := database.NewPoolManager(gdb, database.PoolConfigFrom(s.cfg.Database), s.collector, s.logger)
		if err != nil {
			return fmt.Errorf("database pool: %w", err)
		}
		s.db = pm

		store, err := calllog.NewStore(pm, s.logger)
		if err != nil {
			return fmt.Errorf("call log store: %w", err)
		}
		s.calls = store
	}
	return nil
}

// migrate 将数据库 schema 升级到最新版本
func (s *Server) migrate(ctx context.Context) error {
	m, err := migration.Open(s.cfg.Database, s.logger)
	if err != nil {
		return err
	}
	upErr := m.Up(ctx)
	return errors.Join(upErr, m.Close())
}

// initEngine 组装语音后端、对话模型、旅程规划与轮次编排器
func (s *Server) initEngine(_ context.Context) error {
	cfg := s.cfg
	if cfg.Speech.APIKey == "" {
		s.logger.Warn("speech api key not configured, upstream calls will be rejected")
	}
	if cfg.LLM.APIKey == "" {
		s.logger.Warn("llm api key not configured, conversations will fail")
	}

	sarvam := speech.NewSarvamClient(speech.SarvamConfigFrom(cfg.Speech, cfg.Call.SampleRate), s.logger,
		upstream.WithObserver(s.collector))

	var responderOpts []speech.ResponderOption
	if s.cache != nil {
		responderOpts = append(responderOpts, speech.WithSharedCache(s.cache, cfg.Speech.PromptCacheTTL))
	}
	prompts := speech.NewResponder(sarvam, cfg.Speech.PromptCacheSize, s.logger, responderOpts...)

	model := conversation.NewOpenAIModel(conversation.OpenAIConfigFrom(cfg.LLM), s.logger,
		upstream.WithObserver(s.collector))
	convOpts := conversation.Options{
		Model:       model,
		Counter:     conversation.NewTiktokenCounter(cfg.LLM.Model, s.logger),
		MaxTokens:   cfg.LLM.MaxHistoryTokens,
		Temperature: cfg.LLM.Temperature,
	}

	var questions []conversation.Question
	if cfg.Journey.QuestionnairePath != "" {
		qs, err := conversation.LoadQuestionnaire(cfg.Journey.QuestionnairePath)
		if err != nil {
			return err
		}
		questions = qs
	} else {
		s.logger.Warn("questionnaire not configured, profile calls will not end on their own")
	}

	var (
		documents journey.DocumentStore
		writer    journey.DocumentWriter
		fallback  journey.Resolver
	)
	if cfg.Journey.ContextDir != "" {
		store := journey.NewDirStore(cfg.Journey.ContextDir)
		documents, writer = store, store
		fallback = journey.NewDocumentResolver(store)
	}
	resolver, err := journey.NewStaticResolver(cfg.Journey, fallback)
	if err != nil {
		return err
	}

	planner := journey.NewPlanner(journey.PlannerConfig{
		Resolver:      resolver,
		Documents:     documents,
		Writer:        writer,
		Questionnaire: questions,
		Conversation:  convOpts,
		Language:      cfg.Journey.PromptLanguage,
		NewPipeline: func(h conversation.Handler) call.Pipeline {
			return speech.NewConversationPipeline(sarvam, h, cfg.Speech.DefaultLanguage, s.logger)
		},
	}, s.logger)

	opts := []call.Option{
		call.WithObserver(s.collector),
		call.WithPromptSynthesizer(prompts),
	}
	if s.calls != nil {
		opts = append(opts, call.WithRecorder(s.calls))
	}
	if cfg.Call.DenoiseEnabled {
		dc := denoise.DefaultConfig()
		if cfg.Call.DenoiseMaxWindow > 0 {
			dc.MaxWindow = cfg.Call.DenoiseMaxWindow
		}
		dc.PropDecrease = cfg.Call.DenoisePropDecrease
		gate := denoise.NewSpectralGate(dc)
		opts = append(opts, call.WithConditioner(func() call.Conditioner {
			return denoise.NewSafe(gate, s.logger, func(error) { s.collector.FrameDropped("denoise") })
		}))
	}

	s.registry = call.NewRegistry(0, s.logger)
	s.orchestrator = call.NewOrchestrator(call.ConfigFrom(cfg.Call), s.registry, planner, s.logger, opts...)
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) initHTTP(_ context.Context) error {
	cfg := s.cfg.Server

	s.health = handlers.NewHealthHandler(s.logger)
	s.health.SetActiveCalls(s.registry.Len)
	if s.cache != nil {
		s.health.RegisterCheck(handlers.NewRedisHealthCheck(s.cache.Ping))
	}
	if s.db != nil {
		s.health.RegisterCheck(handlers.NewDatabaseHealthCheck(s.db.Ping))
	}

	topts := transport.DefaultOptions()
	topts.OriginPatterns = cfg.CORSAllowedOrigins
	s.media = handlers.NewMediaStreamHandler(s.orchestrator, topts, s.logger)

	var history handlers.CallHistory
	if s.calls != nil {
		history = s.calls
	}
	twilio := handlers.NewTwilioHandler(cfg.PublicHost, s.logger)
	calls := handlers.NewCallsHandler(s.registry, history, s.logger)

	limiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel
	limit := RateLimiter(limiterCtx, float64(cfg.RateLimitRPS), cfg.RateLimitBurst, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", twilio.HandleIndex)
	mux.Handle("/incoming-call", limit(http.HandlerFunc(twilio.HandleIncomingCall)))
	mux.Handle("GET "+handlers.MediaStreamPath+"{caller}", s.media)

	mux.HandleFunc("GET /v1/calls", calls.HandleActive)
	mux.HandleFunc("GET /v1/calls/history", calls.HandleHistory)

	mux.HandleFunc("/health", s.health.HandleHealth)
	mux.HandleFunc("/healthz", s.health.HandleHealth)
	mux.HandleFunc("/ready", s.health.HandleReady)
	mux.HandleFunc("/readyz", s.health.HandleReady)
	mux.HandleFunc("/version", s.health.HandleVersion(handlers.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}))

	s.handler = Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		Observe(s.logger, s.collector),
		CORS(cfg.CORSAllowedOrigins),
	)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", s.collector.Handler())

	s.manager = server.NewManager(cfg.ShutdownTimeout, s.logger)
	s.manager.Add(server.MediaEndpoint(cfg, s.handler))
	s.manager.Add(server.MetricsEndpoint(cfg, metricsMux))
	s.manager.OnShutdown(s.health.StartDraining)
	s.manager.OnShutdown(s.media.Drain)
	return nil
}

// Handler 返回媒体端点的 HTTP 处理链，Init 之后可用
func (s *Server) Handler() http.Handler { return s.handler }

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Close 刷新通话记录并释放存储与遥测资源，可重复调用
func (s *Server) Close(ctx context.Context) {
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
		s.rateLimiterCancel = nil
	}
	var errs []error
	if s.calls != nil {
		errs = append(errs, s.calls.Close(ctx))
		s.calls = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
		s.cache = nil
	}
	if s.providers != nil {
		errs = append(errs, s.providers.Shutdown(ctx))
		s.providers = nil
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("shutdown cleanup error", zap.Error(err))
	}
	s.logger.Info("graceful shutdown completed")
}
