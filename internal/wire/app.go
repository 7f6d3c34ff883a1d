// Package wire 提供依赖注入配置
package wire

import (
	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/application/translation"
	"z-novel-writer/internal/application/usage"
	"z-novel-writer/internal/infrastructure/messaging"
	"z-novel-writer/internal/interfaces/http/handler"
)

// Worker 后台任务执行器依赖
type Worker struct {
	Jobs     *novel.JobService
	Consumer *messaging.Consumer
	Ledger   *usage.Ledger
}

// TranslationKit 命令行翻译依赖
type TranslationKit struct {
	Engine  *translation.Engine
	Fetcher handler.SourceFetcher
	Ledger  *usage.Ledger
}
