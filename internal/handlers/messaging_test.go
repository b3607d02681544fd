package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/conversations"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/policy"
)

type handlerMocks struct {
	messages    *mocks.MessageRepositoryMock
	users       *mocks.UserDirectoryMock
	assignments *mocks.AssignmentDirectoryMock
}

func setupRouter(role string) (*gin.Engine, handlerMocks) {
	gin.SetMode(gin.TestMode)

	m := handlerMocks{
		messages:    new(mocks.MessageRepositoryMock),
		users:       new(mocks.UserDirectoryMock),
		assignments: new(mocks.AssignmentDirectoryMock),
	}
	handler := NewMessagingHandler(
		conversations.NewService(m.messages),
		m.messages,
		policy.NewEngine(m.users, m.assignments),
		m.users,
		nil,
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("userRole", role)
		c.Next()
	})
	r.POST("/messages", handler.Send)
	r.GET("/messages/unread-count", handler.UnreadCount)
	r.GET("/conversations", handler.ListConversations)
	r.GET("/conversations/:thread_key", handler.GetThread)
	r.POST("/conversations/:thread_key/read", handler.MarkThreadRead)
	r.DELETE("/conversations/:thread_key", handler.DeleteConversation)
	return r, m
}

func visibleRootFrom(senderID int, createdAt time.Time) models.Message {
	return models.Message{
		ID:        1,
		SenderID:  senderID,
		Subject:   "Kickoff",
		Body:      "Starting Monday",
		CreatedAt: createdAt,
		Recipients: []models.RecipientState{
			{MessageID: 1, RecipientID: 1, IsRead: false},
		},
	}
}

func TestSendSuccess(t *testing.T) {
	router, m := setupRouter(models.RoleAdmin)

	m.users.On("ListActive", mock.Anything).Return([]models.User{
		{ID: 2, Username: "carol", Role: models.RoleContractor, IsActive: true},
	}, nil).Once()
	stored := models.Message{
		ID:       10,
		SenderID: 1,
		Subject:  "Kickoff",
		Body:     "Starting Monday",
		Recipients: []models.RecipientState{
			{MessageID: 10, RecipientID: 2},
		},
	}
	m.messages.On("Append", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.SenderID == 1 && len(msg.Recipients) == 1 && msg.Recipients[0].RecipientID == 2
	})).Return(stored, nil).Once()
	m.users.On("BulkUsers", mock.Anything, []int{1, 2}).Return([]models.User{
		{ID: 1, Username: "alice"},
		{ID: 2, Username: "carol"},
	}, nil).Once()

	body := bytes.NewBufferString(`{"recipient_ids":[2],"subject":"Kickoff","body":"Starting Monday"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	m.messages.AssertExpectations(t)
	m.users.AssertExpectations(t)
}

func TestSendForbiddenRoleWritesNothing(t *testing.T) {
	router, m := setupRouter("viewer")

	req := httptest.NewRequest(http.MethodPost, "/messages",
		bytes.NewBufferString(`{"recipient_ids":[2],"subject":"hi","body":"there"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendIneligibleRecipient(t *testing.T) {
	router, m := setupRouter(models.RoleContractor)

	m.users.On("ListActiveByRole", mock.Anything, models.RoleSuperAdmin, models.RoleAdmin).
		Return([]models.User{}, nil).Once()
	m.assignments.On("ManagersForContractor", mock.Anything, 1).Return([]int{5}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages",
		bytes.NewBufferString(`{"recipient_ids":[8],"subject":"hi","body":"there"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendSelfOnlyRecipientList(t *testing.T) {
	router, m := setupRouter(models.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/messages",
		bytes.NewBufferString(`{"recipient_ids":[1],"subject":"hi","body":"there"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	m.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendMissingBody(t *testing.T) {
	router, _ := setupRouter(models.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/messages",
		bytes.NewBufferString(`{"recipient_ids":[2],"subject":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversationsSuccess(t *testing.T) {
	router, m := setupRouter(models.RoleContractor)

	root := visibleRootFrom(2, time.Now())
	m.messages.On("FindVisible", mock.Anything, 1).Return([]models.Message{root}, nil).Once()
	m.users.On("BulkUsers", mock.Anything, []int{2}).Return([]models.User{{ID: 2, Username: "pm"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 1, resp["total"])
	m.messages.AssertExpectations(t)
	m.users.AssertExpectations(t)
}

func TestListConversationsDirectoryFailure(t *testing.T) {
	router, m := setupRouter(models.RoleContractor)

	root := visibleRootFrom(2, time.Now())
	m.messages.On("FindVisible", mock.Anything, 1).Return([]models.Message{root}, nil).Once()
	m.users.On("BulkUsers", mock.Anything, []int{2}).Return(([]models.User)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetThreadMarksReadAndReturnsMessages(t *testing.T) {
	router, m := setupRouter(models.RoleContractor)

	root := visibleRootFrom(2, time.Now())
	m.messages.On("FindVisible", mock.Anything, 1).Return([]models.Message{root}, nil).Once()
	m.messages.On("MarkRead", mock.Anything, []int{1}, 1).Return(1, nil).Once()
	m.users.On("BulkUsers", mock.Anything, []int{2}).Return([]models.User{{ID: 2, Username: "pm"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/1-2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	m.messages.AssertExpectations(t)
}

func TestGetThreadNotFound(t *testing.T) {
	router, m := setupRouter(models.RoleContractor)

	m.messages.On("FindVisible", mock.Anything, 1).Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/9-9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkThreadRead(t *testing.T) {
	router, m := setupRouter(models.RoleContractor)

	root := visibleRootFrom(2, time.Now())
	m.messages.On("FindVisible", mock.Anything, 1).Return([]models.Message{root}, nil).Once()
	m.messages.On("MarkRead", mock.Anything, []int{1}, 1).Return(1, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/1-2/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 1, resp["updated"])
}

func TestUnreadCount(t *testing.T) {
	router, m := setupRouter(models.RoleContractor)

	m.messages.On("CountUnread", mock.Anything, 1).Return(3, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/unread-count", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 3, resp["unread"])
}

func TestDeleteConversationForbiddenForProjectManager(t *testing.T) {
	router, m := setupRouter(models.RoleProjectManager)

	req := httptest.NewRequest(http.MethodDelete, "/conversations/1-2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	m.messages.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteConversationAsAdmin(t *testing.T) {
	router, m := setupRouter(models.RoleAdmin)

	root := visibleRootFrom(2, time.Now())
	m.messages.On("FindVisible", mock.Anything, 1).Return([]models.Message{root}, nil).Once()
	m.messages.On("SoftDelete", mock.Anything, []int{1}, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/1-2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	m.messages.AssertExpectations(t)
}
