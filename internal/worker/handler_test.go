package worker_test

import (
	"context"
	"errors"
	"testing"

	"chat-relay/internal/repository/mocks"
	"chat-relay/internal/tasks"
	"chat-relay/internal/worker"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRoomPurgeHandler_Success(t *testing.T) {
	repo := new(mocks.MessageRepository)
	ctx := context.Background()
	repo.On("DeleteByRoom", ctx, "r1").Return(int64(3), nil).Once()

	task, err := tasks.NewRoomPurgeTask("r1")
	require.NoError(t, err)

	assert.NoError(t, worker.NewRoomPurgeHandler(repo).ProcessTask(ctx, task))
	repo.AssertExpectations(t)
}

func TestRoomPurgeHandler_RepoErrorRetries(t *testing.T) {
	repo := new(mocks.MessageRepository)
	ctx := context.Background()
	repo.On("DeleteByRoom", ctx, "r1").Return(int64(0), errors.New("db down")).Once()

	task, err := tasks.NewRoomPurgeTask("r1")
	require.NoError(t, err)

	err = worker.NewRoomPurgeHandler(repo).ProcessTask(ctx, task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestRoomPurgeHandler_BadPayloadSkipsRetry(t *testing.T) {
	repo := new(mocks.MessageRepository)
	task := asynq.NewTask(tasks.TypeRoomPurge, []byte("{not json"))

	err := worker.NewRoomPurgeHandler(repo).ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	repo.AssertNotCalled(t, "DeleteByRoom", mock.Anything, mock.Anything)
}

func TestNewRoomPurgeTask_RejectsEmptyRoom(t *testing.T) {
	_, err := tasks.NewRoomPurgeTask("")
	assert.Error(t, err)
}

func TestNewServeMux_RoutesPurge(t *testing.T) {
	repo := new(mocks.MessageRepository)
	ctx := context.Background()
	repo.On("DeleteByRoom", ctx, "r2").Return(int64(0), nil).Once()

	task, err := tasks.NewRoomPurgeTask("r2")
	require.NoError(t, err)
	require.NoError(t, worker.NewServeMux(repo).ProcessTask(ctx, task))
	repo.AssertExpectations(t)
}
