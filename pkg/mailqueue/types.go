package mailqueue

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which message an item delivers.
// The set is open: the dispatcher's send table decides which kinds are supported.
type Kind string

const (
	KindConfirmation    Kind = "confirmation"
	KindWelcome         Kind = "welcome"
	KindPasswordReset   Kind = "password_reset"
	KindPasswordChanged Kind = "password_changed"
)

func (k Kind) String() string {
	return string(k)
}

// Status represents the lifecycle state of a queue item
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether no automatic transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Valid checks if the status is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Item is one durable unit of delivery work.
type Item struct {
	ID             uuid.UUID  `json:"id"`
	Kind           Kind       `json:"kind"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name,omitempty"`
	Token          string     `json:"token,omitempty"`
	AdditionalData string     `json:"additional_data,omitempty"`
	Status         Status     `json:"status"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	NextRetryAt    time.Time  `json:"next_retry_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Ready reports whether the item may be claimed at the given time.
func (i *Item) Ready(now time.Time) bool {
	return i.Status == StatusPending && !i.NextRetryAt.After(now)
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	if i.SentAt != nil {
		sentAt := *i.SentAt
		c.SentAt = &sentAt
	}
	return &c
}

// Message is the data handed to a send function.
type Message struct {
	ItemID         uuid.UUID
	Kind           Kind
	RecipientEmail string
	RecipientName  string
	Token          string
	AdditionalData string
}

func messageFromItem(item *Item) Message {
	return Message{
		ItemID:         item.ID,
		Kind:           item.Kind,
		RecipientEmail: item.RecipientEmail,
		RecipientName:  item.RecipientName,
		Token:          item.Token,
		AdditionalData: item.AdditionalData,
	}
}

// Stats is an aggregate view over the queue used for operational visibility.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
}

// StatsFromCounts builds Stats from a per-status count map.
func StatsFromCounts(counts map[Status]int64) Stats {
	return Stats{
		Pending:    counts[StatusPending],
		Processing: counts[StatusProcessing],
		Sent:       counts[StatusSent],
		Failed:     counts[StatusFailed],
	}
}
