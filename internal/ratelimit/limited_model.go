package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// LimitedChatModel 对底层聊天模型的调用做限流与重试的代理。
// 抽取和评估共用一个模型实例时，限流配额也是共享的。
type LimitedChatModel struct {
	inner   model.ToolCallingChatModel
	limiter *TokenBucket
}

var _ model.ToolCallingChatModel = (*LimitedChatModel)(nil)

// NewLimitedChatModel 创建限流代理
func NewLimitedChatModel(inner model.ToolCallingChatModel, qpm int) *LimitedChatModel {
	return &LimitedChatModel{
		inner:   inner,
		limiter: NewTokenBucket(qpm, 0),
	}
}

// WithRetryPolicy 设置重试策略
func (m *LimitedChatModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *LimitedChatModel {
	m.limiter.WithRetryPolicy(waitTime, maxRetries)
	return m
}

func (m *LimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := m.limiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = m.inner.Generate(ctx, messages, options...)
		return genErr
	})
	return response, err
}

func (m *LimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := m.limiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = m.inner.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

func (m *LimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	// 绑定工具后的新实例共享同一个限流器
	return &LimitedChatModel{inner: bound, limiter: m.limiter}, nil
}
