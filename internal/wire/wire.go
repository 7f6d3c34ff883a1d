//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"z-novel-writer/internal/config"
	"z-novel-writer/internal/infrastructure/llm"
	"z-novel-writer/internal/interfaces/http/handler"
	"z-novel-writer/internal/interfaces/http/router"
)

// StoreSet 小说存储
var StoreSet = wire.NewSet(
	ProvideNovelStore,
	ProvideNovelRepository,
)

// RedisSet 可选的 Redis 依赖：任务状态、队列与限流
var RedisSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideJobRepository,
	ProvideMessagingProducer,
	ProvideJobPublisher,
	ProvideRateLimiter,
	ProvideRateLimitKey,
)

// LLMSet 模型工厂与用量记录
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideChatModelFactory,
	ProvideModelCatalog,
	ProvideUsageLedger,
	ProvideGenerator,
)

// NovelSet 小说服务与后台任务
var NovelSet = wire.NewSet(
	ProvideNovelService,
	ProvideJobService,
)

// TranslationSet 翻译引擎与网页抓取
var TranslationSet = wire.NewSet(
	ProvideTranslationEngine,
	ProvideSourceFetcher,
)

// HandlerSet HTTP 处理器与路由
var HandlerSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewNovelHandler,
	handler.NewGenerationHandler,
	handler.NewEditHandler,
	handler.NewJobHandler,
	handler.NewTranslationHandler,
	handler.NewModelHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StoreSet,
		RedisSet,
		LLMSet,
		NovelSet,
		TranslationSet,
		HandlerSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化后台任务执行器，Redis 为必需依赖
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		StoreSet,
		ProvideRedisClient,
		ProvideJobRepository,
		ProvideMessagingProducer,
		ProvideJobPublisher,
		ProvideConsumer,
		LLMSet,
		NovelSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeStore 仅初始化小说存储（用于 bootstrap）
func InitializeStore(ctx context.Context, cfg *config.Config) (NovelStore, func(), error) {
	wire.Build(ProvideNovelStore)
	return nil, nil, nil
}

// InitializeTranslation 初始化命令行翻译所需依赖
func InitializeTranslation(ctx context.Context, cfg *config.Config) (*TranslationKit, func(), error) {
	wire.Build(
		ProvideRedisClientOptional,
		llm.NewEinoFactory,
		ProvideChatModelFactory,
		ProvideUsageLedger,
		TranslationSet,
		wire.Struct(new(TranslationKit), "*"),
	)
	return nil, nil, nil
}
