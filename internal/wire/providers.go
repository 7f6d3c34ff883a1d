package wire

import (
	"context"
	"fmt"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/application/translation"
	"z-novel-writer/internal/application/usage"
	"z-novel-writer/internal/config"
	"z-novel-writer/internal/domain/repository"
	"z-novel-writer/internal/infrastructure/llm"
	"z-novel-writer/internal/infrastructure/messaging"
	"z-novel-writer/internal/infrastructure/persistence/postgres"
	"z-novel-writer/internal/infrastructure/persistence/redis"
	"z-novel-writer/internal/infrastructure/persistence/sqlite"
	"z-novel-writer/internal/infrastructure/source"
	"z-novel-writer/internal/interfaces/http/handler"
	"z-novel-writer/internal/interfaces/http/middleware"
	einoobs "z-novel-writer/internal/observability/eino"
	workflowport "z-novel-writer/internal/workflow/port"
	"z-novel-writer/pkg/logger"
)

// NovelStore 小说快照存储，附带探活
type NovelStore interface {
	repository.NovelRepository
	HealthCheck(ctx context.Context) error
}

// ProvideNovelStore 按 database.driver 打开存储并完成建表
func ProvideNovelStore(ctx context.Context, cfg *config.Config) (NovelStore, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return postgres.NewNovelRepository(client), func() { _ = client.Close() }, nil
	case config.DriverSQLite, "":
		store, err := sqlite.Open(cfg.Database.SQLite.Path, sqlite.WithBusyTimeout(cfg.Database.SQLite.BusyTimeout))
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

// ProvideNovelRepository 暴露仓储接口
func ProvideNovelRepository(store NovelStore) repository.NovelRepository {
	return store
}

// ProvideRedisClientOptional Redis 未启用或不可用时返回 nil，后台任务、限流与译文缓存随之关闭
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, jobs and rate limiting disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideRedisClient worker 必须连上 Redis
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideJobRepository 任务状态存放在 Redis
func ProvideJobRepository(client *redis.Client) repository.JobRepository {
	if client == nil {
		return nil
	}
	return redis.NewJobStore(client, 0)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(client *redis.Client, cfg *config.Config) *messaging.Producer {
	if client == nil {
		return nil
	}
	return messaging.NewProducer(client.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideJobPublisher 提供任务投递器
func ProvideJobPublisher(producer *messaging.Producer) novel.JobPublisher {
	if producer == nil {
		return nil
	}
	return messaging.NewJobPublisher(producer)
}

// ProvideRateLimiter Redis 不可用时不限流
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideRateLimitKey 限流键格式
func ProvideRateLimitKey() middleware.KeyFunc {
	return redis.BuildRateLimitKey
}

// ProvideChatModelFactory 暴露模型工厂
func ProvideChatModelFactory(factory *llm.EinoFactory) workflowport.ChatModelFactory {
	return factory
}

// ProvideModelCatalog 暴露模型目录
func ProvideModelCatalog(factory *llm.EinoFactory) handler.ModelCatalog {
	return factory
}

// ProvideUsageLedger 创建用量账本并注册为 Eino 全局回调的记录器
func ProvideUsageLedger() *usage.Ledger {
	ledger := usage.NewLedger()
	einoobs.Init(ledger)
	return ledger
}

// ProvideGenerator 提供基于 LLM 的生成器
func ProvideGenerator(factory workflowport.ChatModelFactory) novel.Generator {
	return novel.NewLLMGenerator(factory)
}

// ProvideNovelService 按 novel 配置创建小说服务
func ProvideNovelService(cfg *config.Config, repo repository.NovelRepository, gen novel.Generator) (*novel.Service, error) {
	opts := novel.Options{
		Provider:           cfg.LLM.DefaultProvider,
		MergeMissingStates: cfg.Novel.MergeMissingStates,
	}
	if t := cfg.Novel.Temperature; t > 0 {
		v := float32(t)
		opts.Temperature = &v
	}
	return novel.NewService(repo, gen, opts, cfg.Novel.MaxSessions, cfg.Novel.HistoryPageSize)
}

// ProvideJobService 任务执行次数与消费者重试上限保持一致
func ProvideJobService(cfg *config.Config, novels *novel.Service, jobs repository.JobRepository, publisher novel.JobPublisher) *novel.JobService {
	return novel.NewJobService(novels, jobs, publisher).WithMaxAttempts(cfg.Messaging.RedisStream.RetryLimit)
}

// ProvideTranslationEngine 组装翻译引擎；启用缓存且 Redis 可用时按分块缓存译文
func ProvideTranslationEngine(ctx context.Context, cfg *config.Config, factory workflowport.ChatModelFactory, client *redis.Client) *translation.Engine {
	var translator translation.ChunkTranslator = translation.NewLLMTranslator(factory)
	tc := cfg.Translation
	if tc.CacheEnabled {
		if client != nil {
			translator = translation.NewCachedTranslator(translator, redis.NewTranslationCache(client, tc.CacheTTL), redis.TranslationKey)
		} else {
			logger.Warn(ctx, "translation cache enabled but redis is unavailable")
		}
	}
	return translation.NewEngine(translator, translation.Config{
		ChunkSize:       tc.ChunkSize,
		Workers:         tc.Workers,
		Provider:        tc.Provider,
		Model:           tc.Model,
		DefaultLanguage: tc.DefaultLanguage,
		Languages:       tc.Languages,
	})
}

// ProvideSourceFetcher 提供网页源抓取器
func ProvideSourceFetcher(cfg *config.Config) handler.SourceFetcher {
	return source.NewFetcher(&cfg.Source)
}

// ProvideHealthHandler 以存储驱动名作为就绪检查项
func ProvideHealthHandler(cfg *config.Config, store NovelStore, client *redis.Client) *handler.HealthHandler {
	driver := cfg.Database.Driver
	if driver == "" {
		driver = config.DriverSQLite
	}
	return handler.NewHealthHandler(driver, store, client)
}

// ProvideConsumer 提供生成任务消费者
func ProvideConsumer(client *redis.Client, cfg *config.Config) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	group := messaging.ConsumerGroupGenWorker
	if rs.ConsumerGroupPrefix != "" {
		group = messaging.ConsumerGroup(rs.ConsumerGroupPrefix + string(messaging.ConsumerGroupGenWorker))
	}
	return messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamNovelGen,
		Group:         group,
		ConsumerName:  messaging.DefaultConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}
