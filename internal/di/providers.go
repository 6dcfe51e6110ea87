package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "Tradyxa/internal/domain/repository"
	"Tradyxa/internal/handler/api"
	mid "Tradyxa/internal/middleware"
	internalrepo "Tradyxa/internal/repository"
	icache "Tradyxa/internal/service/cache"
	"Tradyxa/internal/service/ratelimit"
	"Tradyxa/internal/services/synthetic"
	"Tradyxa/internal/usecase"
	pkgcache "Tradyxa/pkg/cache"
	pkgch "Tradyxa/pkg/clickhouse"
	"Tradyxa/pkg/config"
	xhttp "Tradyxa/pkg/http"
	pkgkafka "Tradyxa/pkg/kafka"
	applogger "Tradyxa/pkg/logger"
	"Tradyxa/pkg/metrics"
	"Tradyxa/pkg/queue"
	pkgs3 "Tradyxa/pkg/s3"
	"Tradyxa/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRedisClient connects to Redis when a cache or queue backend needs
// it and returns nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.RedisRequired() {
		return nil, nil
	}
	client, _, err := pkgcache.NewRedisClient(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideCacheBackend selects the key-value backend shared by the snapshot
// cache and the job store.
func ProvideCacheBackend(cfg *config.Config, client *redis.Client) (pkgcache.Service, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return pkgcache.NewRedisCacheFromClient(client, cfg.Redis.Prefix), nil
	case "layered":
		return pkgcache.NewLayeredCache(
			pkgcache.NewRedisCacheFromClient(client, cfg.Redis.Prefix),
			pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
			pkgcache.WithLayeredMemoryTTL(cfg.Pipeline.CacheTTL),
		), nil
	case "none":
		return pkgcache.Nop{}, nil
	case "memory", "":
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// ProvideSnapshotCache returns nil when caching is disabled.
func ProvideSnapshotCache(cfg *config.Config, backend pkgcache.Service, l *applogger.Logger) domrepo.SnapshotCache {
	if cfg.Cache.Backend == "none" {
		return nil
	}
	return icache.NewSnapshotCache(backend, l.With(applogger.String("component", "snapshot_cache")))
}

// ProvideJobStore keeps simulation jobs in the cache backend. With caching
// disabled jobs still need somewhere to live, so they get a private
// in-memory cache.
func ProvideJobStore(cfg *config.Config, backend pkgcache.Service) domrepo.JobStore {
	if cfg.Cache.Backend == "none" {
		backend = pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	return internalrepo.NewCacheJobStore(backend)
}

// ProvideDocumentStore opens the persisted documents on disk or in S3.
func ProvideDocumentStore(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) (domrepo.DocumentStore, error) {
	opts := []internalrepo.Option{
		internalrepo.WithLogger(l.With(applogger.String("component", "documents"))),
		internalrepo.WithMetrics(m),
	}
	switch cfg.Data.Backend {
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		defer cancel()
		client, err := pkgs3.New(ctx, pkgs3.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Prefix:         cfg.S3.Prefix,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return internalrepo.NewS3DocumentStore(client, cfg.Data.LivePath, opts...), nil
	default:
		return internalrepo.NewFSDocumentStore(cfg.Data.Dir, cfg.Data.LivePath, opts...), nil
	}
}

// ProvideLiveSource reads live prices from live.url when set and from the
// document store otherwise.
func ProvideLiveSource(cfg *config.Config, docs domrepo.DocumentStore, l *applogger.Logger, m domrepo.Metrics) domrepo.LiveSource {
	if cfg.Live.URL == "" {
		return docs
	}
	return internalrepo.NewHTTPLiveSource(cfg.Live.URL, cfg.Live.Timeout,
		internalrepo.WithLogger(l.With(applogger.String("component", "live_source"))),
		internalrepo.WithMetrics(m),
	)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideHistoryStore keeps resolution history in ClickHouse when a client
// is available and in memory otherwise.
func ProvideHistoryStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (domrepo.HistoryStore, error) {
	if ch == nil {
		return internalrepo.NewMemoryHistoryStore(200), nil
	}
	store := internalrepo.NewCHHistoryStore(ch, cfg.ClickHouse.Database)
	store.SetLogger(l.With(applogger.String("component", "history")))

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideHistoryPipeline(cfg *config.Config, store domrepo.HistoryStore, m domrepo.Metrics, l *applogger.Logger) *mid.HistoryPipeline {
	return mid.NewHistoryPipeline(store,
		mid.WithMinInterval(cfg.History.MinInterval),
		mid.WithBatch(cfg.History.BatchSize, cfg.History.FlushInterval),
		mid.WithBufferSize(cfg.History.BufferSize),
		mid.WithPipelineMetrics(m),
		mid.WithPipelineLogger(l.With(applogger.String("component", "history_pipeline"))),
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.EventsTopic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes to the events topic, or to the log when
// there is no producer.
func ProvideEventPublisher(producer *pkgkafka.Producer, l *applogger.Logger) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NewLogEventPublisher(l.With(applogger.String("component", "events")))
	}
	return internalrepo.NewKafkaEventPublisher(producer)
}

func ProvideTickerPipeline(cfg *config.Config, docs domrepo.DocumentStore, live domrepo.LiveSource, m domrepo.Metrics, l *applogger.Logger) *usecase.TickerPipeline {
	q := cfg.Pipeline.Quality
	builder := synthetic.NewBuilder(synthetic.WithQualityPolicy(synthetic.QualityPolicy{
		MetaGood:    q.MetaGood,
		VerdictGood: q.VerdictGood,
		VerdictLow:  q.VerdictLow,
	}))
	return usecase.NewTickerPipeline(docs,
		usecase.WithLiveSource(live),
		usecase.WithBuilder(builder),
		usecase.WithReadTimeout(cfg.Pipeline.ReadTimeout),
		usecase.WithPipelineMetrics(m),
		usecase.WithPipelineLogger(l.With(applogger.String("component", "pipeline"))),
	)
}

func ProvideTickerService(
	cfg *config.Config,
	p *usecase.TickerPipeline,
	cache domrepo.SnapshotCache,
	history *mid.HistoryPipeline,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.TickerService {
	opts := []usecase.ServiceOption{
		usecase.WithHistory(history),
		usecase.WithEvents(events),
		usecase.WithServiceMetrics(m),
		usecase.WithServiceLogger(l.With(applogger.String("component", "tickers"))),
	}
	if cache != nil {
		opts = append(opts, usecase.WithCache(cache, cfg.Pipeline.CacheTTL))
	}
	return usecase.NewTickerService(p, opts...)
}

// ProvideQueue creates the simulation queue on Redis or in memory.
func ProvideQueue(cfg *config.Config, client *redis.Client, l *applogger.Logger) queue.Queue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	ql := l.With(applogger.String("component", "queue"))
	if cfg.Queue.Backend == "redis" {
		return queue.NewRedisQueue(ql, qcfg, client, queue.WithKeyPrefix(cfg.Redis.Prefix))
	}
	return queue.NewMemoryQueue(ql, qcfg)
}

// ProvideSimulationService creates the service and registers it as the
// handler of simulation runs.
func ProvideSimulationService(
	cfg *config.Config,
	jobs domrepo.JobStore,
	q queue.Queue,
	tickers *usecase.TickerService,
	events domrepo.EventPublisher,
	l *applogger.Logger,
) *usecase.SimulationService {
	svc := usecase.NewSimulationService(usecase.SimulationConfig{
		StepDelay:     cfg.Simulation.StepDelay,
		Retention:     cfg.Simulation.Retention,
		PruneSchedule: cfg.Simulation.PruneSchedule,
	}, jobs, q, tickers, events, l.With(applogger.String("component", "simulation")))
	q.RegisterJob(svc)
	return svc
}

// ProvideKafkaConsumer creates the spot consumer, or nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerLanes(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerStartAtLatest(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	cl := l.With(applogger.String("component", "kafka_consumer"))
	consumer.SetLogger(cl)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{}, pkgkafka.NewLogHook(cl)))
	return consumer, nil
}

func ProvideSpotTicksHandler(cfg *config.Config, docs domrepo.DocumentStore, m domrepo.Metrics, l *applogger.Logger) *usecase.SpotTicksHandler {
	return usecase.NewSpotTicksHandler(cfg.Kafka.SpotTopic, docs, m, l.With(applogger.String("component", "spot_ticks")))
}

// ProvideRateLimiter limits simulation starts and stream opens per client.
// A non-positive simulation.per_minute disables limiting.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	n := cfg.Simulation.PerMinute
	if n <= 0 {
		return nil
	}
	return ratelimit.New(float64(n)/60, n)
}

func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	tickers *usecase.TickerService,
	sims *usecase.SimulationService,
	history domrepo.HistoryStore,
	docs domrepo.DocumentStore,
	limiter *ratelimit.Limiter,
) xhttp.Handler {
	hl := l.With(applogger.String("component", "http"))
	return xhttp.Handlers{
		api.NewTickerEchoHandler(hl, tickers, sims, history, docs, limiter),
		api.NewTickerStreamHandler(hl, tickers, limiter, cfg.Stream.Interval),
	}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(h, l.With(applogger.String("component", "http_server")),
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
	)
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	history *mid.HistoryPipeline,
	historyStore domrepo.HistoryStore,
	q queue.Queue,
	sims *usecase.SimulationService,
	consumer *pkgkafka.Consumer,
	spot *usecase.SpotTicksHandler,
	events domrepo.EventPublisher,
	backend pkgcache.Service,
	ch *pkgch.Client,
	redisClient *redis.Client,
) *server.App {
	c := server.Components{
		HTTP:         httpServer,
		History:      history,
		HistoryStore: historyStore,
		Queue:        q,
		Simulations:  sims,
		Events:       events,
		Cache:        backend,
	}
	// typed nils must not reach the interface fields
	if consumer != nil {
		c.Consumer = consumer
		c.SpotHandler = spot
	}
	if ch != nil {
		c.ClickHouse = ch
	}
	if redisClient != nil {
		c.Redis = redisClient
	}
	return server.New(cfg, l, c)
}
