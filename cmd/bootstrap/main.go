package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"z-novel-writer/internal/config"
	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	"z-novel-writer/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting storage bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 打开存储，建表与迁移在此完成
	store, cleanup, err := wire.InitializeStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize novel store: %v", err)
	}
	defer cleanup()
	fmt.Printf("Novel store ready (driver: %s)\n", cfg.Database.Driver)

	// 3. 收集全部 ID；保存会改变更新时间排序，不能边翻页边写
	var ids []string
	for page := 1; ; page++ {
		total, records, err := store.LoadPage(ctx, repository.NewPagination(page, repository.MaxPageSize))
		if err != nil {
			log.Fatalf("failed to list novels: %v", err)
		}
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}
		if len(records) == 0 || int64(len(ids)) >= total {
			break
		}
	}

	// 4. 旧版本快照升级到当前结构
	upgraded, broken := 0, 0
	for _, id := range ids {
		rec, err := store.Get(ctx, id)
		if err != nil {
			log.Fatalf("failed to load novel %s: %v", id, err)
		}
		if rec == nil {
			continue
		}
		novel, version, err := entity.DecodeSnapshot([]byte(rec.StateJSON))
		if err != nil {
			broken++
			fmt.Printf("Skipping novel %s: %v\n", id, err)
			continue
		}
		if version == entity.CurrentSchemaVersion {
			continue
		}
		if _, err := store.Save(ctx, novel); err != nil {
			log.Fatalf("failed to save novel %s: %v", id, err)
		}
		upgraded++
		fmt.Printf("Upgraded novel %s from schema v%d to v%d\n", id, version, entity.CurrentSchemaVersion)
	}

	fmt.Printf("Bootstrap completed: %d novels, %d upgraded, %d unreadable\n", len(ids), upgraded, broken)
}
