package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
)

// Every method takes context.Context first — repositories do I/O, and the
// context carries the request's deadline and cancellation down to the
// driver.
//
// Lookup methods return (nil, nil) when the row does not exist. The
// engines translate that into models.ErrNotFound with a message naming
// the entity; the repositories themselves never invent error kinds.
//
// Two implementations exist: postgres (pgx) for production and memory
// (mutex-guarded maps) for tests and DB-less development. Each repository
// method is a single atomic unit against its store — the engines rely on
// that for the guarantees around concurrent transitions and mark-read.

// UserRepository is the identity directory: it resolves user ids to user
// records. The messaging and lease engines only ever read from it.
type UserRepository interface {
	Create(ctx context.Context, fullName, email, passwordHash string, role models.UserRole, phoneNumber string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Exists is the hot-path check the engines run before touching
	// anything else; it avoids pulling the full row when only presence
	// matters.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	List(ctx context.Context) ([]models.User, error)

	// Delete removes a user. Returns false if the user did not exist.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// PropertyFilter narrows a property search. Zero values mean "no
// constraint"; pointer fields distinguish "unset" from "zero".
type PropertyFilter struct {
	Title         string
	Address       string
	MinRent       *float64
	MaxRent       *float64
	AvailableFrom *time.Time
}

// PropertyRepository holds rental listings.
type PropertyRepository interface {
	Create(ctx context.Context, property models.Property) (*models.Property, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	List(ctx context.Context) ([]models.Property, error)
	ListByLandlord(ctx context.Context, landlordID uuid.UUID) ([]models.Property, error)
	Search(ctx context.Context, filter PropertyFilter) ([]models.Property, error)
	Update(ctx context.Context, property models.Property) (*models.Property, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// LeaseRepository holds lease records. Status is the only mutable field,
// and it only changes through TransitionStatus.
type LeaseRepository interface {
	// Create persists a lease and returns it with ID and CreatedAt set.
	Create(ctx context.Context, lease models.Lease) (*models.Lease, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Lease, error)

	// TransitionStatus is a compare-and-swap: it moves the lease to `to`
	// only if its current status is one of `from`, in a single atomic
	// statement. Returns the lease as it stands after the call and
	// whether this caller won the transition. When two callers race,
	// exactly one sees won=true; the loser gets the post-transition
	// lease back and can report the conflict. Returns (nil, false, nil)
	// if the lease does not exist.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.LeaseStatus, to models.LeaseStatus) (*models.Lease, bool, error)

	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Lease, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Lease, error)
}

// MessageRepository is the append-only message log plus the query
// primitives the conversation engine composes. List methods return
// newest-first (SentAt desc, id desc on ties) unless noted.
type MessageRepository interface {
	// Create appends a message, assigning ID and SentAt. SentAt is
	// monotonically increasing across the store.
	Create(ctx context.Context, message models.Message) (*models.Message, error)

	GetByID(ctx context.Context, id int64) (*models.Message, error)

	ListBySender(ctx context.Context, senderID uuid.UUID) ([]models.Message, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Message, error)

	// ListForUser returns every message the user sent or received.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error)

	ListUnread(ctx context.Context, recipientID uuid.UUID) ([]models.Message, error)

	// Conversation returns the full bidirectional history between two
	// users, oldest first — conversations read top to bottom, unlike
	// inboxes.
	Conversation(ctx context.Context, userA, userB uuid.UUID) ([]models.Message, error)

	// LatestPerCounterpart returns, for each distinct user the given
	// user has exchanged messages with, the single most recent message
	// of that pair (highest id on a SentAt tie), newest pair first.
	LatestPerCounterpart(ctx context.Context, userID uuid.UUID) ([]models.Message, error)

	// CountUnreadBetween counts messages from sender to recipient that
	// are still unread.
	CountUnreadBetween(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error)

	// Search matches term case-insensitively against content and
	// subject, scoped to messages the user sent or received. An empty
	// term matches everything.
	Search(ctx context.Context, userID uuid.UUID, term string) ([]models.Message, error)

	// MarkRead flips the given messages to read, but only those
	// addressed to recipientID and still unread — everything else is
	// silently skipped. Returns the ids that actually flipped, so
	// callers needing confirmation get a per-id answer. Idempotent:
	// re-marking a read message changes nothing, including ReadAt.
	MarkRead(ctx context.Context, recipientID uuid.UUID, ids []int64, readAt time.Time) ([]int64, error)

	// MarkAllFromSender flips every unread message from sender to
	// recipient in one step. Returns how many flipped.
	MarkAllFromSender(ctx context.Context, recipientID, senderID uuid.UUID, readAt time.Time) (int64, error)

	// Delete removes a message permanently. Returns false if it did not
	// exist. Replies pointing at it are left alone.
	Delete(ctx context.Context, id int64) (bool, error)

	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Message, error)
	ListByLease(ctx context.Context, leaseID uuid.UUID) ([]models.Message, error)

	// ListReplies returns direct replies to a message, oldest first.
	ListReplies(ctx context.Context, parentID int64) ([]models.Message, error)

	CountBySender(ctx context.Context, senderID uuid.UUID) (int64, error)
	CountByRecipient(ctx context.Context, recipientID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
}
