package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lablink-go/internal/config"
	"lablink-go/internal/constants"
	"lablink-go/internal/tracing"
)

// ErrNotFound key不存在时返回，封装底层的redis.Nil。
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("lablink-go/storage/redis")

// Redis 键值存储适配器：匹配结果缓存与索引重建锁。
type Redis struct {
	client *redis.Client
	cfg    *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端并验证连通性。
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("Redis配置不能为空")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeoutSeconds > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutSeconds) * time.Second
	}
	if cfg.ReadTimeoutSeconds > 0 {
		opts.ReadTimeout = time.Duration(cfg.ReadTimeoutSeconds) * time.Second
	}
	if cfg.WriteTimeoutSeconds > 0 {
		opts.WriteTimeout = time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接Redis失败 (%s): %w", cfg.Address, err)
	}

	return &Redis{client: client, cfg: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping 探活
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Set 写入字符串值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get 读取字符串值，key不存在返回ErrNotFound
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// MatchCacheKey 由查询参数生成缓存键（MD5哈希避免超长key）。
func MatchCacheKey(payload any) string {
	data, _ := json.Marshal(payload)
	sum := md5.Sum(data)
	return fmt.Sprintf(constants.KeyMatchResult, hex.EncodeToString(sum[:]))
}

// CacheMatchResult 缓存一次匹配响应的JSON。
func (r *Redis) CacheMatchResult(ctx context.Context, key string, payload any) error {
	ctx, span := redisTracer.Start(ctx, "redis.CacheMatchResult",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("redis.key", tracing.TruncateString(key, tracing.MaxRedisLength))),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return fmt.Errorf("序列化匹配结果失败: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.cfg.MatchCacheTTL()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入匹配结果缓存失败: %w", err)
	}
	return nil
}

// GetCachedMatchResult 读缓存并反序列化到out；未命中返回ErrNotFound。
func (r *Redis) GetCachedMatchResult(ctx context.Context, key string, out any) error {
	ctx, span := redisTracer.Start(ctx, "redis.GetCachedMatchResult",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("redis.key", tracing.TruncateString(key, tracing.MaxRedisLength))),
	)
	defer span.End()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return fmt.Errorf("反序列化匹配结果缓存失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return nil
}

// ClearMatchCache 清除所有匹配结果缓存（重建索引后调用）。
func (r *Redis) ClearMatchCache(ctx context.Context) error {
	return r.clearByPattern(ctx, "redis.ClearMatchCache", fmt.Sprintf(constants.KeyMatchResult, "*"))
}

// ClearProfessorCache 清除教授列表缓存（数据变更或重建索引后调用）。
func (r *Redis) ClearProfessorCache(ctx context.Context) error {
	return r.clearByPattern(ctx, "redis.ClearProfessorCache", fmt.Sprintf(constants.KeyProfessorList, "*"))
}

// clearByPattern SCAN逐批删除匹配模式的键，避免KEYS阻塞。
func (r *Redis) clearByPattern(ctx context.Context, spanName, pattern string) error {
	ctx, span := redisTracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var cursor uint64
	var deleted int
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return fmt.Errorf("扫描缓存键失败: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				tracing.RecordError(span, err, tracing.ErrorTypeRedis)
				return fmt.Errorf("删除缓存键失败: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	span.SetAttributes(attribute.Int("redis.deleted_keys", deleted))
	return nil
}

// releaseLockScript 只释放自己持有的锁
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// AcquireLock 获取分布式锁（SET NX），返回锁值用于释放。
// 拿不到锁返回空串，调用方应放弃本次操作而不是等待。
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	ctx, span := redisTracer.Start(ctx, "redis.AcquireLock",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("redis.key", lockKey)),
	)
	defer span.End()

	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("生成锁值失败: %w", err)
	}
	lockValue := id.String()

	ok, err := r.client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return "", fmt.Errorf("获取锁失败: %w", err)
	}
	if !ok {
		span.SetAttributes(attribute.Bool("lock.acquired", false))
		return "", nil
	}
	span.SetAttributes(attribute.Bool("lock.acquired", true))
	return lockValue, nil
}

// ReleaseLock 用Lua脚本释放锁，只有持有者能释放。
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	ctx, span := redisTracer.Start(ctx, "redis.ReleaseLock",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("redis.key", lockKey)),
	)
	defer span.End()

	res, err := releaseLockScript.Run(ctx, r.client, []string{lockKey}, lockValue).Int64()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return false, fmt.Errorf("释放锁失败: %w", err)
	}
	return res == 1, nil
}
