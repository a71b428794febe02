package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesTokens(t *testing.T) {
	tb := NewTokenBucket(60, 2)

	assert.True(t, tb.Allow(), "初始桶满，第一个请求应放行")
	assert.True(t, tb.Allow(), "容量为2，第二个请求应放行")
	assert.False(t, tb.Allow(), "令牌耗尽后应拒绝")
}

func TestWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow(), "先耗尽令牌")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryWithBackoffRetriesRetryableErrors(t *testing.T) {
	tb := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("429 Too Many Requests")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	tb := NewTokenBucket(6000, 100).WithRetryPolicy(time.Millisecond, 3)

	calls := 0
	permanent := errors.New("参数非法")
	err := tb.RetryWithBackoff(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls, "不可重试的错误不应重试")
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("read tcp: i/o timeout")))
	assert.True(t, isRetryableError(errors.New("服务器繁忙，请稍后再试")))
	assert.False(t, isRetryableError(errors.New("模型不存在")))
	assert.False(t, isRetryableError(nil))
}
