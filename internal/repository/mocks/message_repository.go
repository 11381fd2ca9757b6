package mocks

import (
	"context"

	"chat-relay/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MessageRepository 是 repository.MessageRepository 的 Mock 实现
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []domain.Message
	if v := args.Get(0); v != nil {
		msgs = v.([]domain.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}
