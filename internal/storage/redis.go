package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resume-screen-go/internal/config"
	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/pipeline"
	"resume-screen-go/internal/tracing"
	"resume-screen-go/internal/types"
	"resume-screen-go/pkg/utils"
)

// ErrNotFound key不存在时返回，封装底层的 redis.Nil
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("resume-screen-go/storage/redis")

// Redis 封装go-redis客户端
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("Redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("Redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 记录所有Redis操作的OpenTelemetry span
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis注册OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("Redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// ScreenCache 基于Redis的筛选结果缓存
type ScreenCache struct {
	redis *Redis
	ttl   time.Duration
}

// NewScreenCache 创建筛选结果缓存，ttl<=0时使用默认过期时间
func NewScreenCache(r *Redis, ttl time.Duration) *ScreenCache {
	if ttl <= 0 {
		ttl = constants.DefaultResultCacheTTL
	}
	return &ScreenCache{redis: r, ttl: ttl}
}

var _ pipeline.ResultCache = (*ScreenCache)(nil)

// GetScreenResult 按文件路径查询缓存的筛选结果，未命中返回 (nil, nil)
func (c *ScreenCache) GetScreenResult(ctx context.Context, filePath string) (*types.ScreenResult, error) {
	key := fmt.Sprintf(constants.KeyScreenResult, utils.FilePathKey(filePath))
	data, err := c.redis.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取筛选结果缓存失败: %w", err)
	}

	var result types.ScreenResult
	if err := json.Unmarshal(data, &result); err != nil {
		// 缓存内容损坏按未命中处理，下游会重新筛选并覆盖
		return nil, nil
	}
	return &result, nil
}

// SetScreenResult 缓存筛选结果
func (c *ScreenCache) SetScreenResult(ctx context.Context, filePath string, result *types.ScreenResult) error {
	if result == nil {
		return fmt.Errorf("筛选结果不能为空")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化筛选结果失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyScreenResult, utils.FilePathKey(filePath))
	if err := c.redis.Client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入筛选结果缓存失败: %w", err)
	}
	return nil
}

// SetTalentInfo 缓存候选人结构化信息
func (c *ScreenCache) SetTalentInfo(ctx context.Context, talentID string, info *types.CandidateInfo) error {
	if info == nil {
		return fmt.Errorf("候选人信息不能为空")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("序列化候选人信息失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyScreenTalent, talentID)
	if err := c.redis.Client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("写入候选人信息缓存失败: %w", err)
	}
	return nil
}

// IncrScreenStats 累加条件集维度的筛选统计。
// 读改写非原子，统计仅用于展示，偶发丢失可接受。
func (c *ScreenCache) IncrScreenStats(ctx context.Context, conditionSetID string, qualified bool) error {
	key := fmt.Sprintf(constants.KeyScreenStats, conditionSetID)

	ctx, span := redisTracer.Start(ctx, "ScreenCache.IncrScreenStats",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("condition_set_id", conditionSetID),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			attribute.Bool("qualified", qualified),
		),
	)
	defer span.End()

	var stats types.ScreenStats
	data, err := c.redis.Client.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("读取筛选统计失败: %w", err)
	}
	if err == nil {
		if jsonErr := json.Unmarshal(data, &stats); jsonErr != nil {
			// 损坏的统计从零重建
			stats = types.ScreenStats{}
		}
	}

	stats.Total++
	if qualified {
		stats.Qualified++
	} else {
		stats.Disqualified++
	}

	if err := c.redis.Client.Set(ctx, key, &stats, c.ttl).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入筛选统计失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// GetScreenStats 查询条件集维度的筛选统计，不存在时返回零值
func (c *ScreenCache) GetScreenStats(ctx context.Context, conditionSetID string) (*types.ScreenStats, error) {
	key := fmt.Sprintf(constants.KeyScreenStats, conditionSetID)
	data, err := c.redis.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &types.ScreenStats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取筛选统计失败: %w", err)
	}
	var stats types.ScreenStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return &types.ScreenStats{}, nil
	}
	return &stats, nil
}
