package conversations

import (
	"sort"
	"strconv"
	"strings"

	"messaging-service/internal/models"
)

// ThreadKey groups messages into one conversation. A root exchange keys
// by its sorted participant-id signature ("1-3-7"); a reply keys by its
// root's signature when the root is in the visible set, otherwise by
// the declared root id in decimal. Signatures always contain a dash
// (sender plus at least one recipient), so the two forms never collide.
type ThreadKey string

// ParticipantSignature derives the signature key from a message's
// participant set, deduplicated and sorted.
func ParticipantSignature(m models.Message) ThreadKey {
	ids := m.ParticipantIDs()
	sort.Ints(ids)
	parts := make([]string, 0, len(ids))
	var prev int
	for i, id := range ids {
		if i > 0 && id == prev {
			continue
		}
		prev = id
		parts = append(parts, strconv.Itoa(id))
	}
	return ThreadKey(strings.Join(parts, "-"))
}

// DeriveKeys computes the thread key of every message in a visible set.
// Resolution is single-step: a reply adopts its declared root's
// signature only when that root is present and is itself a root.
func DeriveKeys(msgs []models.Message) map[int]ThreadKey {
	byID := make(map[int]models.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}

	keys := make(map[int]ThreadKey, len(msgs))
	for _, m := range msgs {
		if m.ThreadID == nil {
			keys[m.ID] = ParticipantSignature(m)
			continue
		}
		if root, ok := byID[*m.ThreadID]; ok && root.ThreadID == nil {
			keys[m.ID] = ParticipantSignature(root)
			continue
		}
		keys[m.ID] = ThreadKey(strconv.Itoa(*m.ThreadID))
	}
	return keys
}
