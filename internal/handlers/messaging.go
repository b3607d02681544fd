package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversations"
	"messaging-service/internal/directory"
	"messaging-service/internal/models"
	"messaging-service/internal/notifications"
	"messaging-service/internal/observability"
	"messaging-service/internal/policy"
	"messaging-service/internal/repositories"
)

// MessagingHandler exposes the messaging API over HTTP.
type MessagingHandler struct {
	conversations *conversations.Service
	messages      repositories.MessageRepository
	policy        *policy.Engine
	users         directory.UserDirectory
	dispatcher    *notifications.Dispatcher
}

// NewMessagingHandler builds a MessagingHandler.
func NewMessagingHandler(
	conversationSvc *conversations.Service,
	messages repositories.MessageRepository,
	policyEngine *policy.Engine,
	users directory.UserDirectory,
	dispatcher *notifications.Dispatcher,
) *MessagingHandler {
	return &MessagingHandler{
		conversations: conversationSvc,
		messages:      messages,
		policy:        policyEngine,
		users:         users,
		dispatcher:    dispatcher,
	}
}

type participantView struct {
	ID       int    `json:"id"`
	Username string `json:"username,omitempty"`
}

// Send validates the recipient list against the caller's eligible set,
// appends the message and notifies each recipient. Notification is
// fire-and-forget; validation always precedes the write.
func (h *MessagingHandler) Send(c *gin.Context) {
	var req struct {
		RecipientIDs []int  `json:"recipient_ids" binding:"required"`
		Subject      string `json:"subject" binding:"required"`
		Body         string `json:"body" binding:"required"`
		ThreadID     *int   `json:"thread_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	role := c.GetString("userRole")

	recipientIDs, err := h.policy.Validate(c.Request.Context(), userID, role, req.RecipientIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	msg := models.Message{
		SenderID: userID,
		Subject:  req.Subject,
		Body:     req.Body,
		ThreadID: req.ThreadID,
	}
	for _, id := range recipientIDs {
		msg.Recipients = append(msg.Recipients, models.RecipientState{RecipientID: id})
	}

	stored, err := h.messages.Append(c.Request.Context(), msg)
	if err != nil {
		respondError(c, err)
		return
	}
	observability.IncMessagesSent()

	requestID := requestIDFromContext(c)
	go h.notifyRecipients(stored, recipientIDs, requestID)

	c.JSON(http.StatusCreated, gin.H{
		"message":      stored,
		"participants": h.participantViews(c.Request.Context(), stored.ParticipantIDs()),
	})
}

// ListConversations returns one page of the caller's inbox.
func (h *MessagingHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", conversations.DefaultPageSize)

	result, err := h.conversations.ListConversations(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	participantIDSet := map[int]struct{}{}
	participantIDs := make([]int, 0)
	for _, summary := range result.Conversations {
		for _, id := range summary.ParticipantIDs {
			if _, ok := participantIDSet[id]; !ok {
				participantIDSet[id] = struct{}{}
				participantIDs = append(participantIDs, id)
			}
		}
	}

	users, err := h.users.BulkUsers(c.Request.Context(), participantIDs)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load user info"})
		return
	}
	usernameByID := map[int]string{}
	for _, u := range users {
		usernameByID[u.ID] = u.Username
	}

	type conversationResponse struct {
		models.ConversationSummary
		Participants []participantView `json:"participants"`
	}
	responses := make([]conversationResponse, 0, len(result.Conversations))
	for _, summary := range result.Conversations {
		views := make([]participantView, 0, len(summary.ParticipantIDs))
		for _, id := range summary.ParticipantIDs {
			views = append(views, participantView{ID: id, Username: usernameByID[id]})
		}
		responses = append(responses, conversationResponse{ConversationSummary: summary, Participants: views})
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": responses,
		"total":         result.Total,
		"page":          result.Page,
		"page_size":     result.PageSize,
		"total_pages":   result.TotalPages,
	})
}

// GetThread returns the thread in reading order. Fetching it marks the
// caller's unread entries read.
func (h *MessagingHandler) GetThread(c *gin.Context) {
	userID := c.GetInt("userID")
	key := conversations.ThreadKey(c.Param("thread_key"))

	msgs, err := h.conversations.GetThread(c.Request.Context(), userID, key)
	if err != nil {
		respondError(c, err)
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	senderIDSet := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := senderIDSet[m.SenderID]; !ok {
			senderIDSet[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	users, err := h.users.BulkUsers(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load senders"})
		return
	}
	senderNames := map[int]string{}
	for _, u := range users {
		senderNames[u.ID] = u.Username
	}

	type messageResponse struct {
		models.Message
		SenderUsername string `json:"sender_username,omitempty"`
	}
	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, SenderUsername: senderNames[m.SenderID]})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// MarkThreadRead marks the caller's unread entries in the thread read.
func (h *MessagingHandler) MarkThreadRead(c *gin.Context) {
	userID := c.GetInt("userID")
	key := conversations.ThreadKey(c.Param("thread_key"))

	updated, err := h.conversations.MarkThreadRead(c.Request.Context(), userID, key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// UnreadCount returns the caller's total unread message count.
func (h *MessagingHandler) UnreadCount(c *gin.Context) {
	userID := c.GetInt("userID")

	count, err := h.conversations.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// DeleteConversation soft-deletes the thread for the caller. Super
// administrators only.
func (h *MessagingHandler) DeleteConversation(c *gin.Context) {
	userID := c.GetInt("userID")
	role := c.GetString("userRole")
	key := conversations.ThreadKey(c.Param("thread_key"))

	if err := h.conversations.DeleteConversation(c.Request.Context(), key, userID, role); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// notifyRecipients runs detached from the request; publish failures are
// logged by the dispatcher and never reach the sender.
func (h *MessagingHandler) notifyRecipients(msg models.Message, recipientIDs []int, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := gin.H{
		"message_id": msg.ID,
		"sender_id":  msg.SenderID,
		"subject":    msg.Subject,
	}
	for _, recipientID := range recipientIDs {
		h.dispatcher.Notify(ctx, recipientID, notifications.KindMessageReceived, payload, requestID)
	}
}

func (h *MessagingHandler) participantViews(ctx context.Context, ids []int) []participantView {
	views := make([]participantView, 0, len(ids))
	users, err := h.users.BulkUsers(ctx, ids)
	if err != nil {
		log.Printf("participant lookup failed: %v", err)
		for _, id := range ids {
			views = append(views, participantView{ID: id})
		}
		return views
	}
	usernameByID := map[int]string{}
	for _, u := range users {
		usernameByID[u.ID] = u.Username
	}
	for _, id := range ids {
		views = append(views, participantView{ID: id, Username: usernameByID[id]})
	}
	return views
}

// respondError maps the domain error taxonomy to HTTP status codes.
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var forbiddenErr *models.ForbiddenError
	var notFoundErr *models.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
