package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-relay/internal/domain"
	apihttp "chat-relay/internal/handler/http"
	"chat-relay/internal/repository"
	"chat-relay/internal/repository/mocks"
	"chat-relay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, *mocks.RoomRepository, *mocks.MessageRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	roomRepo := new(mocks.RoomRepository)
	msgRepo := new(mocks.MessageRepository)
	h := apihttp.NewRoomHandler(service.NewRoomService(roomRepo, msgRepo, nil))
	r := gin.New()
	h.RegisterRoutes(r.Group("/chats"))
	return r, roomRepo, msgRepo
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListRooms(t *testing.T) {
	r, roomRepo, _ := setupRouter(t)
	roomRepo.On("FindAll", mock.Anything).Return(domain.SeedRooms(), nil).Once()

	w := doJSON(r, http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp apihttp.ListRoomsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rooms, 3)
	assert.Equal(t, "Chat 1", resp.Rooms[0].Name)
	assert.Len(t, resp.Rooms[0].Messages, 2)
}

func TestCreateRoom(t *testing.T) {
	r, roomRepo, _ := setupRouter(t)
	roomRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Room")).Return(nil).Once()

	w := doJSON(r, http.MethodPost, "/chats", gin.H{"name": "Team", "createdBy": "admin"})
	require.Equal(t, http.StatusCreated, w.Code)

	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "Team", room.Name)
	assert.Equal(t, "admin", room.CreatedBy)
}

func TestCreateRoom_BadBody(t *testing.T) {
	r, roomRepo, _ := setupRouter(t)

	w := doJSON(r, http.MethodPost, "/chats", gin.H{"name": "Team"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	roomRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRenameRoom_AcceptsChatID(t *testing.T) {
	r, roomRepo, msgRepo := setupRouter(t)
	roomRepo.On("UpdateName", mock.Anything, "3", "New").Return(nil).Once()
	roomRepo.On("FindByID", mock.Anything, "3").Return(&domain.Room{ID: "3", Name: "New", CreatedBy: "admin"}, nil).Once()
	msgRepo.On("ListByRoom", mock.Anything, "3").Return([]domain.Message{}, nil).Once()

	w := doJSON(r, http.MethodPut, "/chats/update", gin.H{"chatId": "3", "name": "New"})
	require.Equal(t, http.StatusOK, w.Code)

	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, "New", room.Name)
	roomRepo.AssertExpectations(t)
}

func TestRenameRoom_NotFound(t *testing.T) {
	r, roomRepo, _ := setupRouter(t)
	roomRepo.On("UpdateName", mock.Anything, "404", "New").Return(repository.ErrRoomNotFound).Once()

	w := doJSON(r, http.MethodPut, "/chats/update", gin.H{"roomId": "404", "name": "New"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestDeleteRoom(t *testing.T) {
	r, roomRepo, msgRepo := setupRouter(t)
	roomRepo.On("Delete", mock.Anything, "1").Return(nil).Once()
	msgRepo.On("DeleteByRoom", mock.Anything, "1").Return(int64(2), nil).Once()

	w := doJSON(r, http.MethodDelete, "/chats/delete", gin.H{"roomId": "1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp apihttp.DeleteRoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "deleted", resp.Status)
	assert.Equal(t, "1", resp.RoomID)
}

func TestDeleteRoom_MissingID(t *testing.T) {
	r, _, _ := setupRouter(t)
	w := doJSON(r, http.MethodDelete, "/chats/delete", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppendMessage(t *testing.T) {
	r, roomRepo, msgRepo := setupRouter(t)
	roomRepo.On("FindByID", mock.Anything, "1").Return(&domain.Room{ID: "1"}, nil).Once()
	msgRepo.On("Append", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil).Once()

	w := doJSON(r, http.MethodPost, "/chats/messages", gin.H{
		"id": "local-7", "text": "hello", "sender": "admin", "timestamp": 100, "roomId": "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.NotEmpty(t, msg.ID)
	assert.NotEqual(t, "local-7", msg.ID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, int64(100), msg.Timestamp)
}

func TestAppendMessage_RoomMissing(t *testing.T) {
	r, roomRepo, _ := setupRouter(t)
	roomRepo.On("FindByID", mock.Anything, "9").Return(nil, repository.ErrRoomNotFound).Once()

	w := doJSON(r, http.MethodPost, "/chats/messages", gin.H{"text": "hi", "chatId": "9"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleServiceError_Internal(t *testing.T) {
	r, roomRepo, _ := setupRouter(t)
	roomRepo.On("FindAll", mock.Anything).Return(nil, context.DeadlineExceeded).Once()

	w := doJSON(r, http.MethodGet, "/chats", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
