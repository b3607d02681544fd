package models

import "time"

// Message is one record in the append-only message log. Core fields are
// immutable after creation; per-recipient read state and per-user delete
// markers are the only mutable parts.
type Message struct {
	ID        int       `db:"id" json:"id"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	ThreadID  *int      `db:"thread_id" json:"thread_id,omitempty"`
	Deleted   bool      `db:"deleted" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Recipients []RecipientState `json:"recipients"`
	DeletedBy  []DeletionMarker `json:"-"`
}

// RecipientState is the per-recipient read-state entry embedded in a
// message. IsRead transitions false to true exactly once; ReadAt is set
// on that transition and never cleared.
type RecipientState struct {
	MessageID   int        `db:"message_id" json:"-"`
	RecipientID int        `db:"recipient_id" json:"recipient_id"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// DeletionMarker records a per-user soft delete of a message.
type DeletionMarker struct {
	MessageID int       `db:"message_id" json:"-"`
	UserID    int       `db:"user_id" json:"user_id"`
	DeletedAt time.Time `db:"deleted_at" json:"deleted_at"`
}

// RecipientOf reports the recipient entry for the given user, if any.
func (m Message) RecipientOf(userID int) (RecipientState, bool) {
	for _, r := range m.Recipients {
		if r.RecipientID == userID {
			return r, true
		}
	}
	return RecipientState{}, false
}

// ParticipantIDs returns the sender plus all recipient ids.
func (m Message) ParticipantIDs() []int {
	ids := make([]int, 0, len(m.Recipients)+1)
	ids = append(ids, m.SenderID)
	for _, r := range m.Recipients {
		ids = append(ids, r.RecipientID)
	}
	return ids
}

// ConversationSummary is the API-friendly view of one conversation group
// in a user's inbox.
type ConversationSummary struct {
	ThreadKey      string    `json:"thread_key"`
	LastMessageID  int       `json:"last_message_id"`
	LastSenderID   int       `json:"last_sender_id"`
	Subject        string    `json:"subject"`
	Preview        string    `json:"preview"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ParticipantIDs []int     `json:"participant_ids"`
	MessageCount   int       `json:"message_count"`
	UnreadCount    int       `json:"unread_count"`
}

// ConversationPage is one page of the sorted conversation list.
type ConversationPage struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
	Page          int                   `json:"page"`
	PageSize      int                   `json:"page_size"`
	TotalPages    int                   `json:"total_pages"`
}
