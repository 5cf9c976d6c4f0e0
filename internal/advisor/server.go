// Package advisorsvc wires the investment advisor service together.
package advisorsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-advisor/internal/advisor/biz"
	"github.com/kart-io/sentinel-advisor/internal/advisor/handler"
	"github.com/kart-io/sentinel-advisor/internal/advisor/loader"
	"github.com/kart-io/sentinel-advisor/internal/advisor/metrics"
	"github.com/kart-io/sentinel-advisor/internal/advisor/router"
	"github.com/kart-io/sentinel-advisor/internal/advisor/store"
	"github.com/kart-io/sentinel-advisor/pkg/component/milvus"
	"github.com/kart-io/sentinel-advisor/pkg/component/redis"
	"github.com/kart-io/sentinel-advisor/pkg/infra/app"
	"github.com/kart-io/sentinel-advisor/pkg/infra/pool"
	"github.com/kart-io/sentinel-advisor/pkg/infra/server"
	httpserver "github.com/kart-io/sentinel-advisor/pkg/infra/server/transport/http"
	"github.com/kart-io/sentinel-advisor/pkg/infra/tracing"
	"github.com/kart-io/sentinel-advisor/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/sentinel-advisor/pkg/llm/clova"
	_ "github.com/kart-io/sentinel-advisor/pkg/llm/openai"
	"github.com/kart-io/sentinel-advisor/pkg/llm/resilience"
	advisoropts "github.com/kart-io/sentinel-advisor/pkg/options/advisor"
	llmopts "github.com/kart-io/sentinel-advisor/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-advisor/pkg/options/logger"
	middlewareopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
	milvusopts "github.com/kart-io/sentinel-advisor/pkg/options/milvus"
	redisopts "github.com/kart-io/sentinel-advisor/pkg/options/redis"
	httpopts "github.com/kart-io/sentinel-advisor/pkg/options/server/http"
	tracingopts "github.com/kart-io/sentinel-advisor/pkg/options/tracing"
	"github.com/kart-io/sentinel-advisor/pkg/utils/httpclient"
)

// Name is the name of the application.
const Name = "advisor"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	MiddlewareOptions *middlewareopts.Options
	TracingOptions    *tracingopts.Options
	AdvisorOptions    *advisoropts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	ClovaOptions      *llmopts.ClovaOptions
	MilvusOptions     *milvusopts.Options
	RedisOptions      *redisopts.Options
}

// Server represents the advisor server.
type Server struct {
	srv     *server.Manager
	service biz.Service
	engine  *httpserver.Server
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	app.AnnotateLogger(cfg.LogOptions.LogOption, Name)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting advisor service...")

	mgr := server.NewManager(cfg.HTTPOptions.ShutdownTimeout)
	built := false
	defer func() {
		// 构建失败时释放已创建的资源
		if !built {
			_ = mgr.Stop(context.Background())
		}
	}()

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	mgr.OnShutdown("tracing", tp.Shutdown)
	logger.Infow("Tracing initialized", "enabled", tp.Enabled())

	m := metrics.Global()

	// 3. 初始化 Redis（可选，不可用时关闭缓存）
	var rdb *redis.Client
	if cfg.RedisOptions.Enabled {
		rdb, err = redis.New(ctx, cfg.RedisOptions)
		if err != nil {
			logger.Warnw("failed to connect to redis, caches will be disabled", "error", err.Error())
			rdb = nil
		} else {
			mgr.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
			logger.Infow("Redis initialized", "addr", cfg.RedisOptions.Addr())
		}
	} else {
		logger.Info("Redis is disabled")
	}

	// 4. 初始化 LLM 供应商
	embedder, err := newEmbeddingProvider(cfg, rdb, m)
	if err != nil {
		return nil, err
	}
	chat, err := newChatProvider(cfg, m)
	if err != nil {
		return nil, err
	}

	// 5. 初始化工作池
	fetchPool, err := pool.NewPool("advisor-fetch", pool.FetchPool,
		pool.ConfigFor(pool.FetchPool, cfg.AdvisorOptions.FetchConcurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch pool: %w", err)
	}
	mgr.OnShutdown("fetch-pool", func(context.Context) error { fetchPool.Release(); return nil })

	bgPool, err := pool.NewPool("advisor-background", pool.BackgroundPool, pool.ConfigFor(pool.BackgroundPool, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}
	mgr.OnShutdown("background-pool", func(context.Context) error { bgPool.Release(); return nil })

	embedPool, err := pool.NewPool("advisor-embed", pool.EmbedPool, pool.ConfigFor(pool.EmbedPool, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed pool: %w", err)
	}
	mgr.OnShutdown("embed-pool", func(context.Context) error { embedPool.Release(); return nil })

	// 6. 初始化索引后端
	holder := store.NewIndexHolder()
	builder, err := newIndexBuilder(ctx, cfg, mgr)
	if err != nil {
		return nil, err
	}
	// 注册在 Milvus 之后，关闭时先于客户端执行，以便删除当前集合
	mgr.OnShutdown("index", holder.Close)

	// 7. 初始化 Biz 层
	opts := cfg.AdvisorOptions
	fetcher := httpclient.NewClient(opts.RequestTimeout, 2)
	ingestor := biz.NewIngestor(
		loader.NewPDFLoader(),
		loader.NewURLLoader(fetcher, fetchPool),
		embedder,
		builder,
		holder,
		&biz.IngestConfig{
			ChunkSize:      opts.ChunkSize,
			ChunkOverlap:   opts.ChunkOverlap,
			EmbedBatchSize: opts.EmbedBatchSize,
		},
		m,
	).WithEmbedPool(embedPool)

	var cache *biz.AnswerCache
	if rdb != nil && opts.AnswerCacheTTL > 0 {
		cache = biz.NewAnswerCache(rdb.Client(), &biz.AnswerCacheConfig{
			Enabled: true,
			TTL:     opts.AnswerCacheTTL,
		})
	}
	recommender := biz.NewRecommender(holder, embedder, chat, cache, bgPool, &biz.RecommendConfig{
		TopK:           opts.TopK,
		QueryTemplate:  opts.QueryTemplate,
		PromptTemplate: opts.PromptTemplate,
	}, m)

	service := biz.NewAdvisorService(ingestor, recommender, holder, cache)
	logger.Infow("Advisor service initialized",
		"index.backend", builder.Name(),
		"cache.enabled", cache != nil,
		"top_k", opts.TopK,
	)

	// 8. 初始化 HTTP 服务器与路由
	httpSrv, err := httpserver.NewServer(cfg.HTTPOptions, cfg.MiddlewareOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}
	router.Register(httpSrv.Engine(), handler.NewAdvisorHandler(service, m, handler.Config{
		RequestTimeout: opts.RequestTimeout,
		ReturnSources:  opts.ReturnSources,
	}))
	mgr.AddServer(httpSrv)

	built = true
	logger.Infow("Advisor service is ready", "addr", cfg.HTTPOptions.Addr)
	return &Server{srv: mgr, service: service, engine: httpSrv}, nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx)
}

// Service returns the advisor service.
func (s *Server) Service() biz.Service {
	return s.service
}

// HTTP returns the HTTP transport.
func (s *Server) HTTP() *httpserver.Server {
	return s.engine
}

func breakerOptions(m *metrics.AdvisorMetrics) *resilience.Options {
	bc := resilience.DefaultBreakerConfig()
	bc.OnStateChange = m.RecordBreakerState
	return &resilience.Options{Breaker: bc}
}

// providerConfig 构造供应商工厂配置，clova 额外合并网关参数。
func providerConfig(o *llmopts.ProviderOptions, clova *llmopts.ClovaOptions) map[string]any {
	m := o.ToConfigMap()
	if o.Provider == "clova" && clova != nil {
		m = clova.MergeInto(m)
	}
	return m
}

func newEmbeddingProvider(cfg *Config, rdb *redis.Client, m *metrics.AdvisorMetrics) (llm.EmbeddingProvider, error) {
	base, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, providerConfig(cfg.EmbeddingOptions, cfg.ClovaOptions))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	var embedder llm.EmbeddingProvider = resilience.WrapEmbedding(base, breakerOptions(m))
	if rdb != nil {
		embedder = llm.NewCachedEmbeddingProvider(embedder, rdb.Client(), llm.DefaultEmbeddingCacheConfig())
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
		"cached", rdb != nil,
	)
	return embedder, nil
}

func newChatProvider(cfg *Config, m *metrics.AdvisorMetrics) (llm.ChatProvider, error) {
	base, err := llm.NewChatProvider(cfg.ChatOptions.Provider, providerConfig(cfg.ChatOptions, cfg.ClovaOptions))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)
	return resilience.WrapChat(base, breakerOptions(m)), nil
}

func newIndexBuilder(ctx context.Context, cfg *Config, mgr *server.Manager) (store.IndexBuilder, error) {
	if cfg.AdvisorOptions.IndexBackend != advisoropts.BackendMilvus {
		logger.Info("Using in-memory vector index")
		return store.NewMemoryBuilder(), nil
	}

	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	mgr.OnShutdown("milvus", func(ctx context.Context) error {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return client.Close(closeCtx)
	})
	logger.Infow("Milvus client initialized", "address", cfg.MilvusOptions.Address)

	spec := milvus.DefaultCollectionSpec("", cfg.MilvusOptions)
	spec.TextMaxLength = store.TextMaxLengthFor(cfg.AdvisorOptions.ChunkSize)
	return store.NewMilvusBuilder(client, store.MilvusBuilderConfig{
		Spec:   *spec,
		Prefix: cfg.AdvisorOptions.CollectionPrefix,
	}), nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s on %s...\n", Name, cfg.HTTPOptions.Addr)
}
