// Package cli 提供命令行翻译工具
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"z-novel-writer/internal/application/translation"
	"z-novel-writer/internal/infrastructure/source"
)

// Version 版本信息，构建时注入
var Version = "dev"

// Fetcher 从 URL 获取正文
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*source.Document, error)
}

// Deps 命令执行所需依赖
type Deps struct {
	Engine  *translation.Engine
	Fetcher Fetcher
}

// Loader 延迟加载依赖，只在真正执行命令时读取配置
type Loader func(ctx context.Context) (*Deps, func(), error)

// NewRootCmd 创建根命令
func NewRootCmd(load Loader) *cobra.Command {
	root := &cobra.Command{
		Use:           "translator",
		Short:         "Translate long texts chunk by chunk with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTranslateCmd(load))
	root.AddCommand(newLanguagesCmd(load))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("version:", Version)
		},
	})
	return root
}

func withDeps(cmd *cobra.Command, load Loader, fn func(ctx context.Context, deps *Deps) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	deps, cleanup, err := load(ctx)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(ctx, deps)
}
