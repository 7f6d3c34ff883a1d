// Package main 命令行翻译工具入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"z-novel-writer/internal/config"
	"z-novel-writer/internal/interfaces/cli"
	"z-novel-writer/internal/wire"
	"z-novel-writer/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	root := cli.NewRootCmd(func(ctx context.Context) (*cli.Deps, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		// 译文写 stdout，日志只能走 stderr
		logger.InitWithWriter(os.Stderr, cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

		kit, cleanup, err := wire.InitializeTranslation(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return &cli.Deps{Engine: kit.Engine, Fetcher: kit.Fetcher}, cleanup, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
