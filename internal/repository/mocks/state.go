package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// RateLimiter 是 repository.RateLimiter 的 Mock 实现
type RateLimiter struct {
	mock.Mock
}

func (m *RateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
