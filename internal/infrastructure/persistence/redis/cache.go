package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"z-novel-writer/pkg/metrics"
)

const translationKeyPrefix = "translation:chunk:"

// TranslationCache 翻译分块缓存，相同模型、语言、原文的分块只翻译一次
type TranslationCache struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewTranslationCache 创建翻译缓存
func NewTranslationCache(client *Client, ttl time.Duration) *TranslationCache {
	return &TranslationCache{client: client, ttl: ttl}
}

// TranslationKey 构建缓存键
func TranslationKey(model, language, chunk string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(chunk))
	return translationKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get 读取缓存，未命中返回 false
func (c *TranslationCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.Translation.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Result()
	if IsNil(err) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		metrics.TranslationCacheTotal.WithLabelValues("miss").Inc()
		return "", false, nil
	}
	if err != nil {
		span.RecordError(err)
		return "", false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	metrics.TranslationCacheTotal.WithLabelValues("hit").Inc()
	return val, true, nil
}

// Set 写入缓存
func (c *TranslationCache) Set(ctx context.Context, key, value string) error {
	ctx, span := tracer.Start(ctx, "cache.Translation.Set",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", c.ttl.Milliseconds()),
		))
	defer span.End()

	if err := c.client.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// GetOrLoad 未命中时调用 loader，并发相同键合并为一次加载；写缓存失败不影响结果
func (c *TranslationCache) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (string, error)) (string, error) {
	if val, ok, err := c.Get(ctx, key); err == nil && ok {
		return val, nil
	}

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		if val, ok, err := c.Get(ctx, key); err == nil && ok {
			return val, nil
		}
		val, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.Set(ctx, key, val)
		return val, nil
	})
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Delete 删除缓存
func (c *TranslationCache) Delete(ctx context.Context, keys ...string) error {
	return c.client.rdb.Del(ctx, keys...).Err()
}
