package translation

import (
	"context"

	"z-novel-writer/pkg/logger"
)

// ChunkCache 分块译文缓存
type ChunkCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	GetOrLoad(ctx context.Context, key string, loader func(context.Context) (string, error)) (string, error)
}

// KeyFunc 由模型、语言与原文计算缓存键
type KeyFunc func(model, language, chunk string) string

// CachedTranslator 缓存装饰器，相同模型、语言与原文只翻译一次
type CachedTranslator struct {
	next  ChunkTranslator
	cache ChunkCache
	key   KeyFunc
}

var _ ChunkTranslator = (*CachedTranslator)(nil)

func NewCachedTranslator(next ChunkTranslator, cache ChunkCache, key KeyFunc) *CachedTranslator {
	return &CachedTranslator{next: next, cache: cache, key: key}
}

func (t *CachedTranslator) TranslateChunk(ctx context.Context, req ChunkRequest) (string, error) {
	return t.cache.GetOrLoad(ctx, t.keyOf(req), func(ctx context.Context) (string, error) {
		return t.next.TranslateChunk(ctx, req)
	})
}

// StreamChunk 命中时整块回放，未命中时透传并在完成后写入
func (t *CachedTranslator) StreamChunk(ctx context.Context, req ChunkRequest, emit EmitFunc) (string, error) {
	key := t.keyOf(req)
	if cached, ok, err := t.cache.Get(ctx, key); err == nil && ok {
		if emit != nil {
			if err := emit(cached); err != nil {
				return cached, err
			}
		}
		return cached, nil
	} else if err != nil {
		logger.Warn(ctx, "translation cache lookup failed", "error", err.Error())
	}

	out, err := t.next.StreamChunk(ctx, req, emit)
	if err != nil {
		return out, err
	}
	if err := t.cache.Set(ctx, key, out); err != nil {
		logger.Warn(ctx, "translation cache write failed", "error", err.Error())
	}
	return out, nil
}

func (t *CachedTranslator) keyOf(req ChunkRequest) string {
	return t.key(req.Provider+"/"+req.Model, req.TargetLanguage, req.Text)
}
