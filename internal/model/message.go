package model

import "time"

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageScheduled MessageStatus = "scheduled"
	MessageSent      MessageStatus = "sent"
	MessageError     MessageStatus = "error"
)

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// Message is one unit of outbound communication. Content may carry the
// placeholders {first_name}, {last_name}, {phone} and {participant_type},
// substituted per recipient at dispatch time.
//
// Status never regresses: scheduled -> sent|error, pending -> sent.
type Message struct {
	ID             int64
	Content        string
	SentBy         int64
	RecipientCount int
	Status         MessageStatus
	ScheduledAt    *time.Time
	SentAt         *time.Time
	CreatedAt      time.Time
}

// MessageRecipient is one planned or completed delivery leg. Exactly one row
// exists per (message, participant) pair.
type MessageRecipient struct {
	ID            int64
	MessageID     int64
	ParticipantID int64
	Status        RecipientStatus
	SentAt        *time.Time
	ErrorMessage  *string
}
