package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"DCAClock/internal/domain/models"
	domrepo "DCAClock/internal/domain/repository"
	domsvc "DCAClock/internal/domain/service"
	"DCAClock/internal/handler/api"
	mid "DCAClock/internal/middleware"
	internalrepo "DCAClock/internal/repository"
	"DCAClock/internal/service/binance"
	"DCAClock/internal/service/bitkub"
	"DCAClock/internal/services/advisory"
	"DCAClock/internal/services/guard"
	"DCAClock/internal/services/notify"
	"DCAClock/internal/services/slots"
	"DCAClock/internal/usecase"
	"DCAClock/pkg/cache"
	pkgch "DCAClock/pkg/clickhouse"
	"DCAClock/pkg/config"
	xhttp "DCAClock/pkg/http"
	pkgkafka "DCAClock/pkg/kafka"
	applogger "DCAClock/pkg/logger"
	"DCAClock/pkg/metrics"
	"DCAClock/pkg/queue"
	"DCAClock/pkg/server"

	"github.com/redis/go-redis/v9"
)

func noop() {}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideLocation resolves the trading timezone.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Location()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(nil)
}

// ProvideRedisClient connects to Redis when the config store or the delivery
// queue needs it; otherwise it returns nil.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.NeedsRedis() {
		return nil, noop, nil
	}
	client, err := cache.NewRedisClient(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideCache layers process memory over Redis, or uses memory alone when
// Redis is not configured. Claims only hold across processes in the former.
func ProvideCache(cfg *config.Config, client *redis.Client) (cache.Service, func()) {
	if client == nil {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(1000), cache.WithMemoryCleanup(time.Minute))
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(
		cache.NewRedisCache(client, cfg.Redis.Prefix+":cache"),
		time.Minute,
		cache.WithMemoryMaxSize(1000),
	)
	return lc, func() { _ = lc.Close() }
}

// ProvideClickHouseClient creates a ClickHouse client and its tables, or
// returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, noop, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := pkgch.CandleSchema(cfg.ClickHouse.Database, cfg.ClickHouse.CandleTable)
	stmts = append(stmts, pkgch.FillSchema(cfg.ClickHouse.Database, cfg.ClickHouse.FillTable)...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideKafkaProducer creates the event producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, noop, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreateTopic),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideCandleStore is the ClickHouse candle table, nil without ClickHouse.
func ProvideCandleStore(cfg *config.Config, ch *pkgch.Client, logger *applogger.Logger) *internalrepo.CHCandleStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.CandleTable, logger)
}

// ProvideCandleFeed selects the historical candle source for analysis.
func ProvideCandleFeed(
	cfg *config.Config,
	store *internalrepo.CHCandleStore,
	c cache.Service,
	logger *applogger.Logger,
) (domrepo.CandleFeed, error) {
	switch cfg.Analysis.Source {
	case "clickhouse":
		if store == nil {
			return nil, fmt.Errorf("candle feed: clickhouse source without clickhouse client")
		}
		return store, nil
	default:
		client := xhttp.NewClient(
			xhttp.WithTimeout(cfg.Binance.Timeout),
			xhttp.WithRateLimit(cfg.Binance.RateLimit),
			xhttp.WithGetRetries(3, 30*time.Second),
		)
		klines := binance.NewKlines(client, cfg.Binance.RESTURL, logger)
		return internalrepo.NewCachedCandleFeed(klines, c, cfg.Analysis.CacheTTL), nil
	}
}

// ProvideConfigStore selects where trade configs live.
func ProvideConfigStore(cfg *config.Config, client *redis.Client) (domrepo.ConfigStore, error) {
	switch cfg.Persistence.Store {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("config store: redis selected but no client")
		}
		return internalrepo.NewRedisConfigStore(client, cfg.Redis.Prefix), nil
	case "file":
		return internalrepo.NewFileConfigStore(cfg.Persistence.FilePath), nil
	case "memory":
		return internalrepo.NewMemoryConfigStore(nil), nil
	default:
		return nil, fmt.Errorf("config store: unknown store %q", cfg.Persistence.Store)
	}
}

// ProvideClaimer backs the per-asset-day claim with the shared cache.
func ProvideClaimer(cfg *config.Config, c cache.Service) domrepo.Claimer {
	return internalrepo.NewCacheClaimer(c, cfg.Guard.ClaimTTL)
}

// ProvideRecommendationCache keeps the latest recommendation for a day.
func ProvideRecommendationCache(c cache.Service) domrepo.RecommendationCache {
	return internalrepo.NewCacheRecommendations(c, 24*time.Hour)
}

// ProvideTradeLedger records fills in ClickHouse when available.
func ProvideTradeLedger(cfg *config.Config, ch *pkgch.Client) domrepo.TradeLedger {
	if ch == nil {
		return internalrepo.NopLedger{}
	}
	return internalrepo.NewCHFillLedger(ch, cfg.ClickHouse.FillTable)
}

// ProvideTradeExecutor selects the live exchange or the paper simulator.
func ProvideTradeExecutor(cfg *config.Config, feed domrepo.CandleFeed, logger *applogger.Logger) domsvc.TradeExecutor {
	if cfg.Exchange.Type == "bitkub" {
		client := xhttp.NewClient(
			xhttp.WithTimeout(cfg.Exchange.Timeout),
			xhttp.WithRateLimit(cfg.Exchange.RateLimit),
		)
		return bitkub.NewClient(client, cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.FillWait, logger)
	}
	return bitkub.NewPaper(feed, pairResolver(cfg.Analysis.Symbols, cfg.Analysis.QuoteCurrency), logger)
}

// pairResolver maps a trade config key back to the analysis symbol it was
// derived from, so paper fills can be priced from the same feed.
func pairResolver(symbols []string, quote string) func(string) string {
	return func(key string) string {
		for _, s := range symbols {
			if strings.EqualFold(key, s) || models.ConfigKey(s, quote) == key {
				return s
			}
		}
		return ""
	}
}

// ProvideAdvisoryProvider selects the optional LLM advisor.
func ProvideAdvisoryProvider(cfg *config.Config, loc *time.Location, logger *applogger.Logger) domsvc.AdvisoryProvider {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Advisory.Timeout))
	switch cfg.Advisory.Provider {
	case "gemini":
		return advisory.NewGemini(client, cfg.Advisory.BaseURL, cfg.Advisory.APIKey, cfg.Advisory.Models, loc, logger)
	case "openai":
		model := ""
		if len(cfg.Advisory.Models) > 0 {
			model = cfg.Advisory.Models[0]
		}
		return advisory.NewOpenAI(client, cfg.Advisory.BaseURL, cfg.Advisory.APIKey, model, loc)
	default:
		return advisory.Noop{}
	}
}

// ProvideSinks builds the direct notification sinks. An empty fanout is
// valid: events are then only logged.
func ProvideSinks(cfg *config.Config, producer *pkgkafka.Producer) (notify.Fanout, error) {
	var sinks notify.Fanout
	if url := cfg.Notify.Discord.WebhookURL; url != "" {
		sinks = append(sinks, notify.NewDiscord(xhttp.NewClient(xhttp.WithTimeout(10*time.Second)), url))
	}
	if token := cfg.Notify.Telegram.Token; token != "" {
		bot, err := notify.NewTelegramBot(token)
		if err != nil {
			return nil, fmt.Errorf("telegram bot: %w", err)
		}
		sinks = append(sinks, notify.NewTelegram(bot, cfg.Notify.Telegram.ChatID))
	}
	if producer != nil {
		sinks = append(sinks, notify.NewKafka(producer, cfg.Kafka.Topic))
	}
	return sinks, nil
}

func queueConfig(cfg *config.Config) *queue.QueueConfig {
	return &queue.QueueConfig{
		Workers:    cfg.Notify.Queue.Workers,
		QueueSize:  cfg.Notify.Queue.QueueSize,
		RetryLimit: cfg.Notify.Queue.RetryLimit,
		RetryDelay: cfg.Notify.Queue.RetryDelay,
	}
}

// ProvideDeliveryQueue starts the notification queue with workers that push
// queued events to the sinks. Nil when the queue is disabled.
func ProvideDeliveryQueue(
	cfg *config.Config,
	client *redis.Client,
	sinks notify.Fanout,
	logger *applogger.Logger,
) (*queue.RedisQueue, func(), error) {
	if !cfg.Notify.Queue.Enabled {
		return nil, noop, nil
	}
	q := queue.NewRedisQueue(logger, queueConfig(cfg), client, queue.ModeProducerConsumer,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	q.RegisterJobs(notify.NewDeliveryJob(sinks))
	return startQueue(q, cfg.Server.ShutdownTimeout)
}

// ProvideProducerQueue is the enqueue-only side used by one-shot jobs; the
// long-running app drains it.
func ProvideProducerQueue(cfg *config.Config, client *redis.Client, logger *applogger.Logger) (*queue.RedisQueue, func(), error) {
	if !cfg.Notify.Queue.Enabled {
		return nil, noop, nil
	}
	q := queue.NewRedisQueue(logger, queueConfig(cfg), client, queue.ModeProducerOnly,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	return startQueue(q, cfg.Server.ShutdownTimeout)
}

func startQueue(q *queue.RedisQueue, timeout time.Duration) (*queue.RedisQueue, func(), error) {
	if err := q.Start(); err != nil {
		return nil, nil, fmt.Errorf("delivery queue: %w", err)
	}
	return q, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = q.Stop(ctx)
	}, nil
}

// ProvideNotifier routes events through the queue when enabled, else
// straight to the sinks. Either way delivery failures never reach callers.
// When configured, error logs are folded into periodic digest events.
func ProvideNotifier(
	cfg *config.Config,
	sinks notify.Fanout,
	q *queue.RedisQueue,
	logger *applogger.Logger,
) (domrepo.Notifier, func()) {
	var next domrepo.Notifier = sinks
	if q != nil {
		next = notify.NewQueued(q)
	}
	n := notify.NewSafe(next, logger)

	if !cfg.Notify.ErrorDigest.Enabled {
		return n, noop
	}
	logger.AttachDigest(&applogger.DigestConfig{
		Interval:       cfg.Notify.ErrorDigest.Interval,
		CountThreshold: cfg.Notify.ErrorDigest.CountThreshold,
		Sink:           notify.NewDigestSink(n),
	})
	return n, logger.DetachDigest
}

// ProvideGuard creates the trade trigger guard.
func ProvideGuard(cfg *config.Config, loc *time.Location) *guard.Guard {
	return guard.New(loc,
		guard.WithLeadTolerance(cfg.Guard.LeadTolerance),
		guard.WithCatchUpWindow(cfg.Guard.CatchUpWindow),
	)
}

// ProvideAggregator creates the multi-period slot aggregator.
func ProvideAggregator(cfg *config.Config, loc *time.Location) *slots.Aggregator {
	return slots.NewAggregator(slots.NewCalculator(loc),
		slots.WithPeriods(cfg.Analysis.Periods...),
		slots.WithPrimaryPeriod(cfg.Analysis.PrimaryPeriod),
	)
}

// ProvideResolver wraps the advisor with the statistical fallback.
func ProvideResolver(cfg *config.Config, provider domsvc.AdvisoryProvider, logger *applogger.Logger) *advisory.Resolver {
	return advisory.NewResolver(provider, cfg.Advisory.Timeout, logger)
}

// ProvideRetryPolicy bounds config persistence retries.
func ProvideRetryPolicy(cfg *config.Config) usecase.RetryPolicy {
	return usecase.RetryPolicy{
		Attempts: cfg.Persistence.RetryAttempts,
		Initial:  cfg.Persistence.RetryInitial,
		Max:      cfg.Persistence.RetryMax,
	}
}

// ProvideAnalysisUseCase creates the analysis use case.
func ProvideAnalysisUseCase(
	cfg *config.Config,
	feed domrepo.CandleFeed,
	aggregator *slots.Aggregator,
	resolver *advisory.Resolver,
	store domrepo.ConfigStore,
	recs domrepo.RecommendationCache,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	retry usecase.RetryPolicy,
	logger *applogger.Logger,
) (*usecase.AnalysisUseCase, error) {
	amount, err := cfg.DefaultDCAAmount()
	if err != nil {
		return nil, err
	}
	return usecase.NewAnalysisUseCase(feed, aggregator, resolver, store, notifier, m, logger,
		usecase.WithAnalysisRetry(retry),
		usecase.WithQuoteCurrency(cfg.Analysis.QuoteCurrency),
		usecase.WithDefaultAmount(amount),
		usecase.WithRecommendationCache(recs),
	), nil
}

// ProvideTriggerUseCase creates the trade trigger use case.
func ProvideTriggerUseCase(
	cfg *config.Config,
	store domrepo.ConfigStore,
	claimer domrepo.Claimer,
	executor domsvc.TradeExecutor,
	ledger domrepo.TradeLedger,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	g *guard.Guard,
	retry usecase.RetryPolicy,
	logger *applogger.Logger,
) (*usecase.TriggerUseCase, error) {
	amount, err := cfg.DefaultDCAAmount()
	if err != nil {
		return nil, err
	}
	return usecase.NewTriggerUseCase(store, claimer, executor, notifier, m, g, logger,
		usecase.WithTriggerRetry(retry),
		usecase.WithExecuteTimeout(cfg.Guard.ExecuteTimeout),
		usecase.WithSettleTimeout(cfg.Guard.SettleTimeout),
		usecase.WithTriggerDefaultAmount(amount),
		usecase.WithLedger(ledger),
	), nil
}

// ProvideConfigUseCase creates the config management use case.
func ProvideConfigUseCase(cfg *config.Config, store domrepo.ConfigStore, retry usecase.RetryPolicy) (*usecase.ConfigUseCase, error) {
	amount, err := cfg.DefaultDCAAmount()
	if err != nil {
		return nil, err
	}
	return usecase.NewConfigUseCase(store, retry, usecase.WithConfigDefaultAmount(amount)), nil
}

// ProvideCollector builds the live candle collector feeding ClickHouse, or
// nil when collection is disabled.
func ProvideCollector(
	cfg *config.Config,
	store *internalrepo.CHCandleStore,
	m domrepo.Metrics,
	logger *applogger.Logger,
) *usecase.CandleCollector {
	if !cfg.Collector.Enabled || store == nil {
		return nil
	}
	symbols := cfg.Collector.Symbols
	if len(symbols) == 0 {
		symbols = cfg.Analysis.Symbols
	}
	stream := binance.NewStream(cfg.Binance.WebSocketURL, symbols, cfg.Binance.ReconnectDelay, cfg.Binance.PingInterval, logger)
	pipe := mid.NewCandlePipeline(store, m,
		mid.WithBatchSize(50),
		mid.WithBufferSize(5000),
		mid.WithFlushInterval(5*time.Second),
	)
	return usecase.NewCandleCollector(stream, pipe, m, logger)
}

// ProvideHandlers registers the control-plane routes.
func ProvideHandlers(
	cfg *config.Config,
	logger *applogger.Logger,
	configs *usecase.ConfigUseCase,
	analysis *usecase.AnalysisUseCase,
	trigger *usecase.TriggerUseCase,
	recs domrepo.RecommendationCache,
	store domrepo.ConfigStore,
	client *redis.Client,
	ch *pkgch.Client,
) []xhttp.Handler {
	checks := map[string]func(context.Context) error{
		"config_store": func(ctx context.Context) error {
			_, err := store.List(ctx)
			return err
		},
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	return []xhttp.Handler{
		api.NewConfigsEchoHandler(logger, configs),
		api.NewRunsEchoHandler(logger, analysis, trigger, recs, cfg.Analysis.Symbols),
		api.NewHealthEchoHandler(checks),
	}
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, logger *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(logger, handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(cfg.Server.CORSOrigins),
	)
}

// ProvideScheduler creates the in-process scheduler, or nil when disabled.
func ProvideScheduler(
	cfg *config.Config,
	loc *time.Location,
	analysis *usecase.AnalysisUseCase,
	trigger *usecase.TriggerUseCase,
	logger *applogger.Logger,
) (*server.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	return server.NewScheduler(loc, cfg.Scheduler.TriggerInterval, cfg.Scheduler.AnalysisTime,
		cfg.Analysis.Symbols, analysis, trigger, logger)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	scheduler *server.Scheduler,
	collector *usecase.CandleCollector,
) *server.App {
	return server.New(cfg, logger, httpServer, scheduler, collector)
}

// ProvideJobs exposes the one-shot analysis and trigger commands.
func ProvideJobs(
	cfg *config.Config,
	logger *applogger.Logger,
	analysis *usecase.AnalysisUseCase,
	trigger *usecase.TriggerUseCase,
) *server.Jobs {
	return server.NewJobs(cfg.Analysis.Symbols, analysis, trigger, logger)
}
