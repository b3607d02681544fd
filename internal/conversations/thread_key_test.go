package conversations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"messaging-service/internal/models"
)

func buildMessage(id, senderID int, threadID *int, createdAt time.Time, recipientIDs ...int) models.Message {
	m := models.Message{ID: id, SenderID: senderID, ThreadID: threadID, Subject: "s", Body: "b", CreatedAt: createdAt}
	for _, rid := range recipientIDs {
		m.Recipients = append(m.Recipients, models.RecipientState{MessageID: id, RecipientID: rid})
	}
	return m
}

func intPtr(v int) *int { return &v }

func TestParticipantSignatureSortsAndDedupes(t *testing.T) {
	m := buildMessage(1, 7, nil, time.Now(), 3, 12, 3)
	assert.Equal(t, ThreadKey("3-7-12"), ParticipantSignature(m))
}

func TestDeriveKeysRootUsesSignature(t *testing.T) {
	root := buildMessage(1, 2, nil, time.Now(), 5)
	keys := DeriveKeys([]models.Message{root})
	assert.Equal(t, ThreadKey("2-5"), keys[1])
}

func TestDeriveKeysReplyAdoptsRootSignature(t *testing.T) {
	now := time.Now()
	root := buildMessage(1, 2, nil, now, 5)
	reply := buildMessage(2, 5, intPtr(1), now.Add(time.Minute), 2)
	keys := DeriveKeys([]models.Message{root, reply})

	assert.Equal(t, ThreadKey("2-5"), keys[1])
	assert.Equal(t, ThreadKey("2-5"), keys[2])
}

func TestDeriveKeysOrphanReplyFallsBackToRootID(t *testing.T) {
	reply := buildMessage(9, 5, intPtr(4), time.Now(), 2)
	keys := DeriveKeys([]models.Message{reply})
	assert.Equal(t, ThreadKey("4"), keys[9])
}

func TestDeriveKeysReplyToReplyFallsBackToDeclaredID(t *testing.T) {
	now := time.Now()
	root := buildMessage(1, 2, nil, now, 5)
	reply := buildMessage(2, 5, intPtr(1), now.Add(time.Minute), 2)
	chained := buildMessage(3, 2, intPtr(2), now.Add(2*time.Minute), 5)
	keys := DeriveKeys([]models.Message{root, reply, chained})

	// no deeper chain resolution: a reply targeting a non-root keys by
	// the declared id
	assert.Equal(t, ThreadKey("2"), keys[3])
}

func TestSignatureAndIDKeysNeverCollide(t *testing.T) {
	root := buildMessage(1, 2, nil, time.Now(), 5)
	assert.Contains(t, string(ParticipantSignature(root)), "-")
}
