package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
)

// MessageStore is the in-memory message log. IDs are assigned from a
// counter, so like bigserial in Postgres they are strictly increasing.
// SentAt is forced monotone: if the clock hasn't advanced since the last
// append (or stepped backwards), the new SentAt is nudged past the
// previous one. That keeps "order by SentAt, id" a total order that
// matches send order.
type MessageStore struct {
	mu       sync.Mutex
	messages map[int64]models.Message
	nextID   int64
	lastSent time.Time
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[int64]models.Message), nextID: 1}
}

func (s *MessageStore) Create(ctx context.Context, message models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !now.After(s.lastSent) {
		now = s.lastSent.Add(time.Microsecond)
	}
	s.lastSent = now

	message.ID = s.nextID
	s.nextID++
	message.SentAt = now
	message.IsRead = false
	message.ReadAt = nil
	s.messages[message.ID] = message
	return &message, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MessageStore) ListBySender(ctx context.Context, senderID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectDesc(func(m models.Message) bool { return m.SenderID == senderID }), nil
}

func (s *MessageStore) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectDesc(func(m models.Message) bool { return m.RecipientID == recipientID }), nil
}

func (s *MessageStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectDesc(func(m models.Message) bool {
		return m.SenderID == userID || m.RecipientID == userID
	}), nil
}

func (s *MessageStore) ListUnread(ctx context.Context, recipientID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectDesc(func(m models.Message) bool {
		return m.RecipientID == recipientID && !m.IsRead
	}), nil
}

func (s *MessageStore) Conversation(ctx context.Context, userA, userB uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.collectDesc(func(m models.Message) bool {
		return (m.SenderID == userA && m.RecipientID == userB) ||
			(m.SenderID == userB && m.RecipientID == userA)
	})
	// Conversations read oldest-first.
	reverse(out)
	return out, nil
}

func (s *MessageStore) LatestPerCounterpart(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[uuid.UUID]models.Message)
	for _, m := range s.messages {
		var other uuid.UUID
		switch userID {
		case m.SenderID:
			other = m.RecipientID
		case m.RecipientID:
			other = m.SenderID
		default:
			continue
		}
		best, ok := latest[other]
		if !ok || newer(m, best) {
			latest[other] = m
		}
	}

	out := make([]models.Message, 0, len(latest))
	for _, m := range latest {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out, nil
}

func (s *MessageStore) CountUnreadBetween(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) Search(ctx context.Context, userID uuid.UUID, term string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(term)
	return s.collectDesc(func(m models.Message) bool {
		if m.SenderID != userID && m.RecipientID != userID {
			return false
		}
		return strings.Contains(strings.ToLower(m.Content), needle) ||
			strings.Contains(strings.ToLower(m.Subject), needle)
	}), nil
}

func (s *MessageStore) MarkRead(ctx context.Context, recipientID uuid.UUID, ids []int64, readAt time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flipped := make([]int64, 0, len(ids))
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok || m.RecipientID != recipientID || m.IsRead {
			continue
		}
		at := readAt
		m.IsRead = true
		m.ReadAt = &at
		s.messages[id] = m
		flipped = append(flipped, id)
	}
	return flipped, nil
}

func (s *MessageStore) MarkAllFromSender(ctx context.Context, recipientID, senderID uuid.UUID, readAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, m := range s.messages {
		if m.RecipientID != recipientID || m.SenderID != senderID || m.IsRead {
			continue
		}
		at := readAt
		m.IsRead = true
		m.ReadAt = &at
		s.messages[id] = m
		n++
	}
	return n, nil
}

func (s *MessageStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return false, nil
	}
	delete(s.messages, id)
	return true, nil
}

func (s *MessageStore) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectDesc(func(m models.Message) bool {
		return m.PropertyID != nil && *m.PropertyID == propertyID
	}), nil
}

func (s *MessageStore) ListByLease(ctx context.Context, leaseID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collectDesc(func(m models.Message) bool {
		return m.LeaseID != nil && *m.LeaseID == leaseID
	}), nil
}

func (s *MessageStore) ListReplies(ctx context.Context, parentID int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.collectDesc(func(m models.Message) bool {
		return m.ParentMessageID != nil && *m.ParentMessageID == parentID
	})
	reverse(out)
	return out, nil
}

func (s *MessageStore) CountBySender(ctx context.Context, senderID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.SenderID == senderID {
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) CountByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID {
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, m := range s.messages {
		if m.RecipientID == recipientID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

// collectDesc filters and sorts newest-first (SentAt desc, id desc on
// ties). Callers must hold the lock.
func (s *MessageStore) collectDesc(keep func(models.Message) bool) []models.Message {
	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out
}

// newer reports whether a was sent after b, breaking SentAt ties by the
// higher id.
func newer(a, b models.Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.After(b.SentAt)
	}
	return a.ID > b.ID
}

func reverse(ms []models.Message) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}
