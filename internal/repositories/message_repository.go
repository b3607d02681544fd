package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append-only message store. Mutations are
// limited to per-recipient read flags and per-user delete markers.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	FindVisible(ctx context.Context, userID int) ([]models.Message, error)
	MarkRead(ctx context.Context, messageIDs []int, userID int) (int, error)
	SoftDelete(ctx context.Context, messageIDs []int, userID int) error
	CountUnread(ctx context.Context, userID int) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append validates and durably stores a message with its recipient
// entries in one transaction.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.Subject == "" {
		return models.Message{}, &models.ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	if msg.Body == "" {
		return models.Message{}, &models.ValidationError{Field: "body", Reason: "must not be empty"}
	}

	recipientIDs := dedupeRecipients(msg)
	if len(recipientIDs) == 0 {
		return models.Message{}, &models.ValidationError{Field: "recipients", Reason: "must not be empty"}
	}

	if msg.ThreadID != nil {
		accessible, err := r.threadAccessible(ctx, *msg.ThreadID, msg.SenderID)
		if err != nil {
			return models.Message{}, &models.StoreError{Op: "append", Err: err}
		}
		if !accessible {
			return models.Message{}, &models.ValidationError{Field: "thread_id", Reason: "does not resolve to an accessible message"}
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, &models.StoreError{Op: "append", Err: err}
	}
	defer tx.Rollback()

	var stored models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (sender_id, subject, body, thread_id)
         VALUES ($1, $2, $3, $4)
         RETURNING id, sender_id, subject, body, thread_id, deleted, created_at`,
		msg.SenderID, msg.Subject, msg.Body, msg.ThreadID).StructScan(&stored)
	if err != nil {
		return models.Message{}, &models.StoreError{Op: "append", Err: err}
	}

	for _, recipientID := range recipientIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_recipients (message_id, recipient_id) VALUES ($1, $2)`,
			stored.ID, recipientID); err != nil {
			return models.Message{}, &models.StoreError{Op: "append", Err: err}
		}
		stored.Recipients = append(stored.Recipients, models.RecipientState{
			MessageID:   stored.ID,
			RecipientID: recipientID,
		})
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, &models.StoreError{Op: "append", Err: err}
	}
	return stored, nil
}

// GetMessage retrieves a single message with recipient entries and
// deletion markers.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, sender_id, subject, body, thread_id, deleted, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, &models.StoreError{Op: "get", Err: err}
	}

	if err := r.db.SelectContext(ctx, &msg.Recipients,
		`SELECT message_id, recipient_id, is_read, read_at FROM message_recipients WHERE message_id=$1 ORDER BY recipient_id`, messageID); err != nil {
		return models.Message{}, &models.StoreError{Op: "get", Err: err}
	}
	if err := r.db.SelectContext(ctx, &msg.DeletedBy,
		`SELECT message_id, user_id, deleted_at FROM message_deletions WHERE message_id=$1`, messageID); err != nil {
		return models.Message{}, &models.StoreError{Op: "get", Err: err}
	}
	return msg, nil
}

// FindVisible returns every message where the user is sender or
// recipient, excluding hard-deleted rows and rows the user soft-deleted,
// oldest first.
func (r *MessageRepo) FindVisible(ctx context.Context, userID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT m.id, m.sender_id, m.subject, m.body, m.thread_id, m.deleted, m.created_at
         FROM messages m
         WHERE m.deleted = FALSE
         AND (m.sender_id = $1 OR EXISTS (
             SELECT 1 FROM message_recipients r WHERE r.message_id = m.id AND r.recipient_id = $1))
         AND NOT EXISTS (
             SELECT 1 FROM message_deletions d WHERE d.message_id = m.id AND d.user_id = $1)
         ORDER BY m.created_at ASC, m.id ASC`, userID)
	if err != nil {
		return nil, &models.StoreError{Op: "find", Err: err}
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	ids := make([]int64, 0, len(msgs))
	index := make(map[int]int, len(msgs))
	for i, m := range msgs {
		ids = append(ids, int64(m.ID))
		index[m.ID] = i
	}

	var states []models.RecipientState
	err = r.db.SelectContext(ctx, &states,
		`SELECT message_id, recipient_id, is_read, read_at
         FROM message_recipients
         WHERE message_id = ANY($1)
         ORDER BY message_id, recipient_id`, pq.Array(ids))
	if err != nil {
		return nil, &models.StoreError{Op: "find", Err: err}
	}
	for _, state := range states {
		i := index[state.MessageID]
		msgs[i].Recipients = append(msgs[i].Recipients, state)
	}
	return msgs, nil
}

// MarkRead flips is_read and stamps read_at for the user's entries that
// are still unread. Already-read entries are untouched; returns the
// number of entries updated.
func (r *MessageRepo) MarkRead(ctx context.Context, messageIDs []int, userID int) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE message_recipients
         SET is_read = TRUE, read_at = NOW()
         WHERE recipient_id = $1 AND is_read = FALSE AND message_id = ANY($2)`,
		userID, pq.Array(toInt64(messageIDs)))
	if err != nil {
		return 0, &models.StoreError{Op: "mark_read", Err: err}
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, &models.StoreError{Op: "mark_read", Err: err}
	}
	return int(count), nil
}

// SoftDelete adds the user's delete marker to each message. Idempotent
// per (message, user); other users' visibility is untouched.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageIDs []int, userID int) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_deletions (message_id, user_id)
         SELECT unnest($1::int[]), $2
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		pq.Array(toInt64(messageIDs)), userID)
	if err != nil {
		return &models.StoreError{Op: "soft_delete", Err: err}
	}
	return nil
}

// CountUnread counts visible messages whose recipient entry for the
// user is still unread.
func (r *MessageRepo) CountUnread(ctx context.Context, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
         FROM message_recipients r
         JOIN messages m ON m.id = r.message_id
         WHERE r.recipient_id = $1 AND r.is_read = FALSE
         AND m.deleted = FALSE
         AND NOT EXISTS (
             SELECT 1 FROM message_deletions d WHERE d.message_id = m.id AND d.user_id = $1)`, userID)
	if err != nil {
		return 0, &models.StoreError{Op: "count_unread", Err: err}
	}
	return count, nil
}

func (r *MessageRepo) threadAccessible(ctx context.Context, threadID, senderID int) (bool, error) {
	var accessible bool
	err := r.db.GetContext(ctx, &accessible,
		`SELECT EXISTS (
            SELECT 1 FROM messages m
            WHERE m.id = $1 AND m.deleted = FALSE
            AND (m.sender_id = $2 OR EXISTS (
                SELECT 1 FROM message_recipients r WHERE r.message_id = m.id AND r.recipient_id = $2))
            AND NOT EXISTS (
                SELECT 1 FROM message_deletions d WHERE d.message_id = m.id AND d.user_id = $2))`,
		threadID, senderID)
	return accessible, err
}

// dedupeRecipients drops duplicate recipient ids and the sender itself.
func dedupeRecipients(msg models.Message) []int {
	seen := map[int]struct{}{msg.SenderID: {}}
	ids := make([]int, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		if _, ok := seen[r.RecipientID]; ok {
			continue
		}
		seen[r.RecipientID] = struct{}{}
		ids = append(ids, r.RecipientID)
	}
	return ids
}

func toInt64(ids []int) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}
