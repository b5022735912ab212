// Package messaging implements the conversation engine.
//
// There is no conversation entity anywhere in the system. A conversation
// is derived on every read: the set of messages whose {sender, recipient}
// pair equals a fixed pair of users. The engine validates, authorizes and
// composes over the append-only message log; all grouping, unread
// accounting and latest-message selection happens at query time.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/cache"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/leaselink/leaselink/internal/repository"
	"go.uber.org/zap"
)

type Engine struct {
	messages   repository.MessageRepository
	users      repository.UserRepository
	properties repository.PropertyRepository
	leases     repository.LeaseRepository
	cache      *cache.ConversationCache
	logger     *zap.Logger

	now func() time.Time
}

// NewEngine wires the conversation engine. conversationCache may be nil;
// the engine then recomputes every conversation list from the log.
func NewEngine(
	messages repository.MessageRepository,
	users repository.UserRepository,
	properties repository.PropertyRepository,
	leases repository.LeaseRepository,
	conversationCache *cache.ConversationCache,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		messages:   messages,
		users:      users,
		properties: properties,
		leases:     leases,
		cache:      conversationCache,
		logger:     logger,
		now:        time.Now,
	}
}

// SendInput is the payload for Send. Content is required; everything
// else is optional context.
type SendInput struct {
	RecipientID     uuid.UUID          `json:"recipient_id"`
	PropertyID      *uuid.UUID         `json:"property_id,omitempty"`
	LeaseID         *uuid.UUID         `json:"lease_id,omitempty"`
	ParentMessageID *int64             `json:"parent_message_id,omitempty"`
	Content         string             `json:"content"`
	Subject         string             `json:"subject,omitempty"`
	MessageType     models.MessageType `json:"message_type,omitempty"`
}

// Send validates and stores a new message. All validation happens before
// the write: sender and recipient must exist and differ, content must be
// non-empty and within bounds, and any property/lease/parent reference
// must resolve. Replying requires the sender to be a party to the parent
// message. On success the stored message comes back fully resolved with
// names, emails and property title.
func (e *Engine) Send(ctx context.Context, senderID uuid.UUID, in SendInput) (*models.MessageView, error) {
	sender, err := e.requireUser(ctx, senderID, "sender")
	if err != nil {
		return nil, err
	}
	recipient, err := e.requireUser(ctx, in.RecipientID, "recipient")
	if err != nil {
		return nil, err
	}
	if senderID == in.RecipientID {
		return nil, fmt.Errorf("%w: cannot send a message to yourself", models.ErrInvalidArgument)
	}

	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: message content cannot be empty", models.ErrInvalidArgument)
	}
	if len(in.Content) > models.MaxContentLength {
		return nil, fmt.Errorf("%w: message content exceeds %d characters",
			models.ErrInvalidArgument, models.MaxContentLength)
	}
	if len(in.Subject) > models.MaxSubjectLength {
		return nil, fmt.Errorf("%w: message subject exceeds %d characters",
			models.ErrInvalidArgument, models.MaxSubjectLength)
	}

	messageType := in.MessageType
	if messageType == "" {
		messageType = models.TypeGeneral
	}

	var propertyTitle string
	if in.PropertyID != nil {
		property, err := e.properties.GetByID(ctx, *in.PropertyID)
		if err != nil {
			return nil, err
		}
		if property == nil {
			return nil, fmt.Errorf("%w: property %s", models.ErrNotFound, *in.PropertyID)
		}
		propertyTitle = property.Title
	}

	if in.LeaseID != nil {
		lease, err := e.leases.GetByID(ctx, *in.LeaseID)
		if err != nil {
			return nil, err
		}
		if lease == nil {
			return nil, fmt.Errorf("%w: lease %s", models.ErrNotFound, *in.LeaseID)
		}
	}

	if in.ParentMessageID != nil {
		parent, err := e.messages.GetByID(ctx, *in.ParentMessageID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%w: parent message %d", models.ErrNotFound, *in.ParentMessageID)
		}
		if parent.SenderID != senderID && parent.RecipientID != senderID {
			return nil, fmt.Errorf("%w: cannot reply to a message you don't have access to",
				models.ErrForbidden)
		}
	}

	stored, err := e.messages.Create(ctx, models.Message{
		SenderID:        senderID,
		RecipientID:     in.RecipientID,
		PropertyID:      in.PropertyID,
		LeaseID:         in.LeaseID,
		ParentMessageID: in.ParentMessageID,
		Content:         in.Content,
		Subject:         in.Subject,
		MessageType:     messageType,
	})
	if err != nil {
		return nil, err
	}

	e.cache.Invalidate(ctx, senderID, in.RecipientID)
	e.logger.Info("message sent",
		zap.Int64("message_id", stored.ID),
		zap.String("sender_id", senderID.String()),
		zap.String("recipient_id", in.RecipientID.String()),
		zap.String("message_type", string(messageType)),
	)

	view := &models.MessageView{
		Message:        *stored,
		SenderName:     sender.FullName,
		SenderEmail:    sender.Email,
		RecipientName:  recipient.FullName,
		RecipientEmail: recipient.Email,
		PropertyTitle:  propertyTitle,
	}
	return view, nil
}

// ListReceived returns the user's inbox, newest first.
func (e *Engine) ListReceived(ctx context.Context, userID uuid.UUID) ([]models.MessageView, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	msgs, err := e.messages.ListByRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// ListSent returns the user's outbox, newest first.
func (e *Engine) ListSent(ctx context.Context, userID uuid.UUID) ([]models.MessageView, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	msgs, err := e.messages.ListBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// ListAll returns everything the user sent or received, newest first.
func (e *Engine) ListAll(ctx context.Context, userID uuid.UUID) ([]models.MessageView, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	msgs, err := e.messages.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// ListUnread returns the user's unread inbox, newest first.
func (e *Engine) ListUnread(ctx context.Context, userID uuid.UUID) ([]models.MessageView, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	msgs, err := e.messages.ListUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// Conversation returns the full history between two users, oldest first —
// the one listing that reads chronologically, because a conversation is
// read top to bottom while an inbox is read most-recent-first. The result
// is symmetric: Conversation(a, b) and Conversation(b, a) are identical.
func (e *Engine) Conversation(ctx context.Context, userID, otherUserID uuid.UUID) ([]models.MessageView, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	if _, err := e.requireUser(ctx, otherUserID, "user"); err != nil {
		return nil, err
	}
	msgs, err := e.messages.Conversation(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// Conversations derives the user's conversation list: exactly one entry
// per distinct counterpart, carrying the counterpart's identity, the most
// recent message of the pair, the count of the counterpart's messages the
// user hasn't read, and the latest activity time. Ordered by last
// activity, newest first. Served through the read-through cache when one
// is configured.
func (e *Engine) Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}

	if cached, ok := e.cache.Get(ctx, userID); ok {
		return cached, nil
	}

	latest, err := e.messages.LatestPerCounterpart(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(latest))
	for _, m := range latest {
		otherID := m.SenderID
		if otherID == userID {
			otherID = m.RecipientID
		}

		// The counterpart may have been deleted since the exchange; the
		// conversation still exists, just without display fields.
		other, err := e.users.GetByID(ctx, otherID)
		if err != nil {
			return nil, err
		}

		unread, err := e.messages.CountUnreadBetween(ctx, userID, otherID)
		if err != nil {
			return nil, err
		}

		view, err := e.view(ctx, m)
		if err != nil {
			return nil, err
		}

		summary := models.ConversationSummary{
			OtherUserID:   otherID,
			LatestMessage: *view,
			UnreadCount:   unread,
			LastActivity:  m.SentAt,
		}
		if other != nil {
			summary.OtherUserName = other.FullName
			summary.OtherUserEmail = other.Email
		}
		summaries = append(summaries, summary)
	}

	e.cache.Set(ctx, userID, summaries)
	return summaries, nil
}

// Get returns a single message for a viewer who must be its sender or
// recipient. Viewing is not a pure query: when the recipient opens an
// unread message, this call marks it read as part of the same operation.
// Splitting that into a separate mark-read call would reintroduce the
// race this design exists to avoid.
func (e *Engine) Get(ctx context.Context, messageID int64, viewerID uuid.UUID) (*models.MessageView, error) {
	m, err := e.requireMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.SenderID != viewerID && m.RecipientID != viewerID {
		return nil, fmt.Errorf("%w: not authorized to view this message", models.ErrForbidden)
	}

	if m.RecipientID == viewerID && !m.IsRead {
		if _, err := e.messages.MarkRead(ctx, viewerID, []int64{messageID}, e.now()); err != nil {
			return nil, err
		}
		// Re-read so the returned view carries the store's ReadAt, not
		// a locally guessed one.
		m, err = e.requireMessage(ctx, messageID)
		if err != nil {
			return nil, err
		}
		e.cache.Invalidate(ctx, m.SenderID, m.RecipientID)
	}

	return e.view(ctx, *m)
}

// Search matches term case-insensitively against content and subject
// across the user's sent and received messages, newest first. An empty
// or whitespace term matches everything.
func (e *Engine) Search(ctx context.Context, userID uuid.UUID, term string) ([]models.MessageView, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	msgs, err := e.messages.Search(ctx, userID, strings.TrimSpace(term))
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// MarkRead bulk-marks messages read, best effort: only ids addressed to
// the user and still unread flip; the rest are skipped without error.
// Returns the ids that actually flipped. Idempotent — re-marking a read
// message is a no-op and leaves ReadAt untouched.
func (e *Engine) MarkRead(ctx context.Context, userID uuid.UUID, messageIDs []int64) ([]int64, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	flipped, err := e.messages.MarkRead(ctx, userID, messageIDs, e.now())
	if err != nil {
		return nil, err
	}
	if len(flipped) > 0 {
		e.cache.Invalidate(ctx, userID)
	}
	return flipped, nil
}

// MarkAllFromSender marks every unread message from sender to the user
// read in one step. Returns how many flipped.
func (e *Engine) MarkAllFromSender(ctx context.Context, userID, senderID uuid.UUID) (int64, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return 0, err
	}
	if _, err := e.requireUser(ctx, senderID, "sender"); err != nil {
		return 0, err
	}
	n, err := e.messages.MarkAllFromSender(ctx, userID, senderID, e.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.cache.Invalidate(ctx, userID, senderID)
	}
	return n, nil
}

// Delete permanently removes a message. Only the original sender may
// delete. Replies that pointed at it keep their parent reference; the
// reference simply stops resolving.
func (e *Engine) Delete(ctx context.Context, messageID int64, actorID uuid.UUID) error {
	m, err := e.requireMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != actorID {
		return fmt.Errorf("%w: only the sender can delete a message", models.ErrForbidden)
	}
	if _, err := e.messages.Delete(ctx, messageID); err != nil {
		return err
	}
	e.cache.Invalidate(ctx, m.SenderID, m.RecipientID)
	e.logger.Info("message deleted",
		zap.Int64("message_id", messageID),
		zap.String("sender_id", actorID.String()),
	)
	return nil
}

// Stats returns the user's mailbox counters. Total is sent + received;
// no message is double counted because a message never has the same user
// on both ends.
func (e *Engine) Stats(ctx context.Context, userID uuid.UUID) (*models.MessageStats, error) {
	if _, err := e.requireUser(ctx, userID, "user"); err != nil {
		return nil, err
	}
	sent, err := e.messages.CountBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	received, err := e.messages.CountByRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := e.messages.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.MessageStats{
		TotalMessages: sent + received,
		UnreadCount:   unread,
		TotalSent:     sent,
		TotalReceived: received,
	}, nil
}

// ListByProperty returns every message referencing a property, newest
// first. Deliberately public within the system: any caller may read a
// property's message activity, unlike the per-message access control
// everywhere else.
func (e *Engine) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.MessageView, error) {
	property, err := e.properties.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		return nil, fmt.Errorf("%w: property %s", models.ErrNotFound, propertyID)
	}
	msgs, err := e.messages.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// ListByLease returns every message referencing a lease, newest first.
func (e *Engine) ListByLease(ctx context.Context, leaseID uuid.UUID) ([]models.MessageView, error) {
	lease, err := e.leases.GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease == nil {
		return nil, fmt.Errorf("%w: lease %s", models.ErrNotFound, leaseID)
	}
	msgs, err := e.messages.ListByLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

// ListReplies returns direct replies to a message, oldest first. The
// viewer must be a party to the parent message.
func (e *Engine) ListReplies(ctx context.Context, parentID int64, viewerID uuid.UUID) ([]models.MessageView, error) {
	parent, err := e.requireMessage(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.SenderID != viewerID && parent.RecipientID != viewerID {
		return nil, fmt.Errorf("%w: not authorized to view this message", models.ErrForbidden)
	}
	msgs, err := e.messages.ListReplies(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return e.views(ctx, msgs)
}

func (e *Engine) requireUser(ctx context.Context, id uuid.UUID, label string) (*models.User, error) {
	u, err := e.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: %s %s", models.ErrNotFound, label, id)
	}
	return u, nil
}

func (e *Engine) requireMessage(ctx context.Context, id int64) (*models.Message, error) {
	m, err := e.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: message %d", models.ErrNotFound, id)
	}
	return m, nil
}

// view resolves one message's display fields. Deleted users and
// properties leave their fields empty rather than failing the whole
// listing.
func (e *Engine) view(ctx context.Context, m models.Message) (*models.MessageView, error) {
	v := models.MessageView{Message: m}

	sender, err := e.users.GetByID(ctx, m.SenderID)
	if err != nil {
		return nil, err
	}
	if sender != nil {
		v.SenderName = sender.FullName
		v.SenderEmail = sender.Email
	}

	recipient, err := e.users.GetByID(ctx, m.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient != nil {
		v.RecipientName = recipient.FullName
		v.RecipientEmail = recipient.Email
	}

	if m.PropertyID != nil {
		property, err := e.properties.GetByID(ctx, *m.PropertyID)
		if err != nil {
			return nil, err
		}
		if property != nil {
			v.PropertyTitle = property.Title
		}
	}
	return &v, nil
}

// views resolves a batch, memoizing user and property lookups so a long
// inbox doesn't hit the directory once per row.
func (e *Engine) views(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	userNames := make(map[uuid.UUID]*models.User)
	propertyTitles := make(map[uuid.UUID]string)

	lookupUser := func(id uuid.UUID) (*models.User, error) {
		if u, ok := userNames[id]; ok {
			return u, nil
		}
		u, err := e.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		userNames[id] = u
		return u, nil
	}

	out := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := models.MessageView{Message: m}

		sender, err := lookupUser(m.SenderID)
		if err != nil {
			return nil, err
		}
		if sender != nil {
			v.SenderName = sender.FullName
			v.SenderEmail = sender.Email
		}

		recipient, err := lookupUser(m.RecipientID)
		if err != nil {
			return nil, err
		}
		if recipient != nil {
			v.RecipientName = recipient.FullName
			v.RecipientEmail = recipient.Email
		}

		if m.PropertyID != nil {
			title, ok := propertyTitles[*m.PropertyID]
			if !ok {
				property, err := e.properties.GetByID(ctx, *m.PropertyID)
				if err != nil {
					return nil, err
				}
				if property != nil {
					title = property.Title
				}
				propertyTitles[*m.PropertyID] = title
			}
			v.PropertyTitle = title
		}
		out = append(out, v)
	}
	return out, nil
}
