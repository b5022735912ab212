package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leaselink/leaselink/internal/models"
)

// MessageStore is the append-only message log. Messages use bigserial
// ids, so id order and send order agree — every listing below sorts by
// (sent_at, id) and the id breaks timestamp ties.
type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

const messageColumns = `id, sender_id, recipient_id, property_id, lease_id, parent_message_id,
		content, subject, message_type, is_read, sent_at, read_at`

func (s *MessageStore) Create(ctx context.Context, message models.Message) (*models.Message, error) {
	// sent_at comes from the database clock so it is assigned in the
	// same place ids are — one source of ordering.
	query := `
		INSERT INTO messages (sender_id, recipient_id, property_id, lease_id, parent_message_id,
			content, subject, message_type, is_read, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now())
		RETURNING ` + messageColumns

	var m models.Message
	err := s.pool.QueryRow(ctx, query,
		message.SenderID,
		message.RecipientID,
		message.PropertyID,
		message.LeaseID,
		message.ParentMessageID,
		message.Content,
		message.Subject,
		message.MessageType,
	).Scan(s.scanTargets(&m)...)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &m, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	var m models.Message
	err := s.pool.QueryRow(ctx, query, id).Scan(s.scanTargets(&m)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

func (s *MessageStore) ListBySender(ctx context.Context, senderID uuid.UUID) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE sender_id = $1 ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, senderID)
}

func (s *MessageStore) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE recipient_id = $1 ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, recipientID)
}

func (s *MessageStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE sender_id = $1 OR recipient_id = $1 ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, userID)
}

func (s *MessageStore) ListUnread(ctx context.Context, recipientID uuid.UUID) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE recipient_id = $1 AND is_read = false ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, recipientID)
}

func (s *MessageStore) Conversation(ctx context.Context, userA, userB uuid.UUID) ([]models.Message, error) {
	// Oldest first: a conversation reads top to bottom.
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY sent_at ASC, id ASC`
	return s.queryMany(ctx, query, userA, userB)
}

func (s *MessageStore) LatestPerCounterpart(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	// MAX(id) per counterpart is the newest message of each pair: ids
	// are bigserial, so the highest id is the latest send (and the
	// tie-breaker when timestamps collide).
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE id IN (
			SELECT MAX(id) FROM messages
			WHERE sender_id = $1 OR recipient_id = $1
			GROUP BY CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END
		)
		ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, userID)
}

func (s *MessageStore) CountUnreadBetween(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM messages
		WHERE recipient_id = $1 AND sender_id = $2 AND is_read = false`, recipientID, senderID)
}

func (s *MessageStore) Search(ctx context.Context, userID uuid.UUID, term string) ([]models.Message, error) {
	// An empty term becomes '%%' and matches every message in scope —
	// the documented behavior, not an accident.
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE (sender_id = $1 OR recipient_id = $1)
		  AND (content ILIKE $2 OR subject ILIKE $2)
		ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, userID, "%"+term+"%")
}

func (s *MessageStore) MarkRead(ctx context.Context, recipientID uuid.UUID, ids []int64, readAt time.Time) ([]int64, error) {
	// The is_read = false guard makes this idempotent: a second call
	// matches nothing, so read_at never moves once set. Ids not
	// addressed to the recipient simply don't match — best effort.
	query := `
		UPDATE messages
		SET is_read = true, read_at = $3
		WHERE id = ANY($1) AND recipient_id = $2 AND is_read = false
		RETURNING id`

	rows, err := s.pool.Query(ctx, query, ids, recipientID, readAt)
	if err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}
	defer rows.Close()

	flipped := make([]int64, 0, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan marked id: %w", err)
		}
		flipped = append(flipped, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate marked ids: %w", err)
	}
	return flipped, nil
}

func (s *MessageStore) MarkAllFromSender(ctx context.Context, recipientID, senderID uuid.UUID, readAt time.Time) (int64, error) {
	query := `
		UPDATE messages
		SET is_read = true, read_at = $3
		WHERE recipient_id = $1 AND sender_id = $2 AND is_read = false`

	tag, err := s.pool.Exec(ctx, query, recipientID, senderID, readAt)
	if err != nil {
		return 0, fmt.Errorf("mark all from sender read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *MessageStore) Delete(ctx context.Context, id int64) (bool, error) {
	// Hard delete. parent_message_id is a weak reference with no FK
	// cascade, so replies keep their dangling pointer.
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MessageStore) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE property_id = $1 ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, propertyID)
}

func (s *MessageStore) ListByLease(ctx context.Context, leaseID uuid.UUID) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE lease_id = $1 ORDER BY sent_at DESC, id DESC`
	return s.queryMany(ctx, query, leaseID)
}

func (s *MessageStore) ListReplies(ctx context.Context, parentID int64) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE parent_message_id = $1 ORDER BY sent_at ASC, id ASC`
	return s.queryMany(ctx, query, parentID)
}

func (s *MessageStore) CountBySender(ctx context.Context, senderID uuid.UUID) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM messages WHERE sender_id = $1`, senderID)
}

func (s *MessageStore) CountByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM messages WHERE recipient_id = $1`, recipientID)
}

func (s *MessageStore) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM messages
		WHERE recipient_id = $1 AND is_read = false`, recipientID)
}

func (s *MessageStore) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *MessageStore) scanTargets(m *models.Message) []any {
	return []any{
		&m.ID, &m.SenderID, &m.RecipientID, &m.PropertyID, &m.LeaseID,
		&m.ParentMessageID, &m.Content, &m.Subject, &m.MessageType,
		&m.IsRead, &m.SentAt, &m.ReadAt,
	}
}

func (s *MessageStore) queryMany(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(s.scanTargets(&m)...); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
