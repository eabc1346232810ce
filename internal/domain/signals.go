package domain

import "time"

// MessageDirection says who sent a message relative to the organization.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Message is a single email within a thread.
type Message struct {
	ID            string           `json:"id" db:"id"`
	Direction     MessageDirection `json:"direction" db:"direction"`
	SentAt        time.Time        `json:"sent_at" db:"sent_at"`
	EncryptedBody []byte           `json:"-" db:"body_encrypted"`
}

// EmailThread is a conversation with its messages and the category a previous
// AI classification pass assigned to it (empty when never classified).
type EmailThread struct {
	ID                    string    `json:"id" db:"id"`
	Subject               string    `json:"subject" db:"subject"`
	EncryptedParticipants []byte    `json:"-" db:"participants_encrypted"`
	Messages              []Message `json:"messages"`
	AICategory            string    `json:"ai_category,omitempty" db:"ai_category"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// Thread categories produced by the upstream classifier.
const (
	CategoryHotLead        = "hot_lead"
	CategoryShowingRequest = "showing_request"
	CategoryContract       = "contract"
	CategorySellerLead     = "seller_lead"
	CategoryBuyerLead      = "buyer_lead"
	CategoryPriceInquiry   = "price_inquiry"
)

// TaskStatus enumerates task states the engine cares about. Any other value
// is carried through untouched.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Task is a to-do linked to a contact or a lead.
type Task struct {
	ID        string     `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	Status    TaskStatus `json:"status" db:"status"`
	DueAt     *time.Time `json:"due_at,omitempty" db:"due_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsOverdue reports whether the task is past due and not completed.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Status != TaskCompleted && t.DueAt != nil && t.DueAt.Before(now)
}

// CalendarEvent is a meeting whose attendee list is stored encrypted.
type CalendarEvent struct {
	ID                 string    `json:"id" db:"id"`
	Title              string    `json:"title" db:"title"`
	Start              time.Time `json:"start" db:"start_time"`
	EncryptedAttendees []byte    `json:"-" db:"attendees_encrypted"`
}

// Signals is everything collected for one subject at evaluation time.
// Bodies holds decrypted message bodies of the included threads, used only
// for keyword extraction.
type Signals struct {
	Threads []EmailThread   `json:"threads"`
	Tasks   []Task          `json:"tasks"`
	Events  []CalendarEvent `json:"events"`
	Bodies  []string        `json:"-"`
}
