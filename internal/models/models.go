package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole is a plain string type with constants rather than an enum —
// the values travel through JSON and Postgres as text either way.
type UserRole string

const (
	RoleTenant   UserRole = "TENANT"
	RoleLandlord UserRole = "LANDLORD"
	RoleAdmin    UserRole = "ADMIN"
)

// LeaseStatus is the lease state machine's state set. Transitions only
// ever move forward: PENDING → ACTIVE → TERMINATED, or PENDING →
// TERMINATED. TERMINATED is terminal.
type LeaseStatus string

const (
	LeasePending    LeaseStatus = "PENDING"
	LeaseActive     LeaseStatus = "ACTIVE"
	LeaseTerminated LeaseStatus = "TERMINATED"
)

// MessageType is an informational tag on a message. It drives no logic;
// clients use it to render inboxes.
type MessageType string

const (
	TypeGeneral            MessageType = "GENERAL"
	TypePropertyInquiry    MessageType = "PROPERTY_INQUIRY"
	TypeLeaseRequest       MessageType = "LEASE_REQUEST"
	TypeLeaseUpdate        MessageType = "LEASE_UPDATE"
	TypeMaintenanceRequest MessageType = "MAINTENANCE_REQUEST"
	TypePaymentRelated     MessageType = "PAYMENT_RELATED"
	TypeComplaint          MessageType = "COMPLAINT"
)

// User is an account in the marketplace: a tenant, a landlord, or an admin.
//
// Authorization in this system is never "is this user a LANDLORD" — it is
// always "is this user THE landlord of THIS property" (or the tenant of
// this lease, or the sender of this message). Role exists for display and
// signup bookkeeping, not for access control.
type User struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Property is a rental listing owned by exactly one landlord.
type Property struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Address       string    `json:"address"`
	RentAmount    float64   `json:"rent_amount"`
	AvailableFrom time.Time `json:"available_from"`
	LandlordID    uuid.UUID `json:"landlord_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Lease links one tenant to one property. PropertyID and TenantID are set
// at creation and never change; only Status mutates, through the lease
// engine's guarded transitions. Leases are never deleted.
type Lease struct {
	ID         uuid.UUID   `json:"id"`
	PropertyID uuid.UUID   `json:"property_id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	Status     LeaseStatus `json:"status"`
	StartDate  time.Time   `json:"start_date"`
	EndDate    time.Time   `json:"end_date"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Message is a directed communication between two distinct users,
// optionally tagged with a property, a lease, and a parent message
// (reply). Messages are immutable after send except for the IsRead/ReadAt
// pair, which flips exactly once.
//
// Why int64 for ID while every other entity uses UUID?
//   - Messages are the highest-volume table. bigserial is smaller and
//     naturally ordered, so "higher id = sent later" holds and gives us a
//     free tie-breaker when two messages share a SentAt.
//   - All other entities keep UUIDs like the rest of the system.
//
// ParentMessageID is a weak reference: deleting the parent does not
// cascade here, replies simply keep a dangling pointer. Thread
// reconstruction is a query, not a stored structure.
type Message struct {
	ID              int64       `json:"id"`
	SenderID        uuid.UUID   `json:"sender_id"`
	RecipientID     uuid.UUID   `json:"recipient_id"`
	PropertyID      *uuid.UUID  `json:"property_id,omitempty"`
	LeaseID         *uuid.UUID  `json:"lease_id,omitempty"`
	ParentMessageID *int64      `json:"parent_message_id,omitempty"`
	Content         string      `json:"content"`
	Subject         string      `json:"subject,omitempty"`
	MessageType     MessageType `json:"message_type"`
	IsRead          bool        `json:"is_read"`
	SentAt          time.Time   `json:"sent_at"`
	ReadAt          *time.Time  `json:"read_at,omitempty"`
}

// Bounds on message payloads, enforced at send time.
const (
	MaxContentLength = 1000
	MaxSubjectLength = 200
)

// MessageView is a message enriched with the display fields a client
// would otherwise need three more round-trips to fetch. The repository
// stores ids; the messaging engine joins in names, emails and the
// property title.
type MessageView struct {
	Message
	SenderName     string `json:"sender_name"`
	SenderEmail    string `json:"sender_email"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
	PropertyTitle  string `json:"property_title,omitempty"`
}

// ConversationSummary is one row of a user's conversation list: the
// counterpart, the latest message exchanged with them, and how many of
// their messages are still unread. There is no conversation table — this
// is recomputed from the message log on every request.
type ConversationSummary struct {
	OtherUserID    uuid.UUID   `json:"other_user_id"`
	OtherUserName  string      `json:"other_user_name"`
	OtherUserEmail string      `json:"other_user_email"`
	LatestMessage  MessageView `json:"latest_message"`
	UnreadCount    int64       `json:"unread_count"`
	LastActivity   time.Time   `json:"last_activity"`
}

// MessageStats are a user's mailbox counters.
type MessageStats struct {
	TotalMessages int64 `json:"total_messages"`
	UnreadCount   int64 `json:"unread_count"`
	TotalSent     int64 `json:"total_sent"`
	TotalReceived int64 `json:"total_received"`
}
