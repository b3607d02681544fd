package conversations

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var tracer = otel.Tracer("messaging-service/conversations")

// Service reconstructs conversation views from the flat message log.
// Aggregation is a pure fold over the caller's visible set, materialized
// per request; the result is a best-effort snapshot as of the read.
type Service struct {
	messages repositories.MessageRepository
}

// NewService builds the aggregator.
func NewService(messages repositories.MessageRepository) *Service {
	return &Service{messages: messages}
}

// ListConversations groups the user's visible messages by thread key,
// sorts groups by last activity (newest first, message id as the tie
// break) and paginates the group list.
func (s *Service) ListConversations(ctx context.Context, userID, page, pageSize int) (models.ConversationPage, error) {
	ctx, span := tracer.Start(ctx, "conversations.list")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	msgs, err := s.messages.FindVisible(ctx, userID)
	if err != nil {
		return models.ConversationPage{}, err
	}

	keys := DeriveKeys(msgs)
	groups := map[ThreadKey][]models.Message{}
	order := make([]ThreadKey, 0)
	for _, m := range msgs {
		key := keys[m.ID]
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	summaries := make([]models.ConversationSummary, 0, len(order))
	for _, key := range order {
		summaries = append(summaries, summarize(key, groups[key], userID))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].LastActivityAt.Equal(summaries[j].LastActivityAt) {
			return summaries[i].LastActivityAt.After(summaries[j].LastActivityAt)
		}
		return summaries[i].LastMessageID > summaries[j].LastMessageID
	})

	total := len(summaries)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	span.SetAttributes(attribute.Int("conversations.total", total))
	return models.ConversationPage{
		Conversations: summaries[start:end],
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    totalPages,
	}, nil
}

// GetThread returns the visible messages of one conversation in natural
// reading order (oldest first). Reading a thread acknowledges it: every
// unread entry of the caller in the thread is marked read.
func (s *Service) GetThread(ctx context.Context, userID int, key ThreadKey) ([]models.Message, error) {
	ctx, span := tracer.Start(ctx, "conversations.get_thread")
	defer span.End()

	thread, err := s.threadMessages(ctx, userID, key)
	if err != nil {
		return nil, err
	}

	if _, err := s.messages.MarkRead(ctx, recipientMessageIDs(thread, userID), userID); err != nil {
		return nil, err
	}
	return thread, nil
}

// MarkThreadRead marks every unread entry of the caller in the thread
// read and returns the number of entries updated.
func (s *Service) MarkThreadRead(ctx context.Context, userID int, key ThreadKey) (int, error) {
	thread, err := s.threadMessages(ctx, userID, key)
	if err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, recipientMessageIDs(thread, userID), userID)
}

// UnreadCount counts the caller's unread recipient entries across all
// visible messages. Independent of pagination; meant for polling.
func (s *Service) UnreadCount(ctx context.Context, userID int) (int, error) {
	return s.messages.CountUnread(ctx, userID)
}

// DeleteConversation soft-deletes every visible message of the thread
// for the caller. Restricted to the administrative tier.
func (s *Service) DeleteConversation(ctx context.Context, key ThreadKey, userID int, actorRole string) error {
	switch actorRole {
	case models.RoleSuperAdmin, models.RoleAdmin:
	default:
		return &models.ForbiddenError{Reason: "only administrators may delete conversations"}
	}

	thread, err := s.threadMessages(ctx, userID, key)
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(thread))
	for _, m := range thread {
		ids = append(ids, m.ID)
	}
	return s.messages.SoftDelete(ctx, ids, userID)
}

// threadMessages selects the visible messages sharing the key, oldest
// first. An empty result is a NotFoundError: "no such thread" and "not
// visible" are indistinguishable on purpose.
func (s *Service) threadMessages(ctx context.Context, userID int, key ThreadKey) ([]models.Message, error) {
	msgs, err := s.messages.FindVisible(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := DeriveKeys(msgs)
	thread := make([]models.Message, 0)
	for _, m := range msgs {
		if keys[m.ID] == key {
			thread = append(thread, m)
		}
	}
	if len(thread) == 0 {
		return nil, &models.NotFoundError{Resource: "conversation"}
	}
	return thread, nil
}

func summarize(key ThreadKey, msgs []models.Message, userID int) models.ConversationSummary {
	last := msgs[len(msgs)-1]

	others := map[int]struct{}{}
	unread := 0
	for _, m := range msgs {
		for _, id := range m.ParticipantIDs() {
			if id != userID {
				others[id] = struct{}{}
			}
		}
		if entry, ok := m.RecipientOf(userID); ok && !entry.IsRead {
			unread++
		}
	}
	participantIDs := make([]int, 0, len(others))
	for id := range others {
		participantIDs = append(participantIDs, id)
	}
	sort.Ints(participantIDs)

	return models.ConversationSummary{
		ThreadKey:      string(key),
		LastMessageID:  last.ID,
		LastSenderID:   last.SenderID,
		Subject:        msgs[0].Subject,
		Preview:        last.Body,
		LastActivityAt: last.CreatedAt,
		ParticipantIDs: participantIDs,
		MessageCount:   len(msgs),
		UnreadCount:    unread,
	}
}

func recipientMessageIDs(msgs []models.Message, userID int) []int {
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := m.RecipientOf(userID); ok {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
