package repo

import (
	"context"
	"errors"
	"time"

	"github.com/munnorthwest/conference-messaging/internal/model"
)

var (
	ErrNotFound     = errors.New("message not found")
	ErrNotOwner     = errors.New("message not owned by requesting user")
	ErrNotScheduled = errors.New("message is not in scheduled state")
)

type MessageRepository interface {
	// Create persists the message together with one pending recipient row
	// per participant, as a single unit. RecipientCount is snapshotted from
	// len(participantIDs). On return msg.ID is set.
	Create(ctx context.Context, msg *model.Message, participantIDs []int64) error

	// ListDue returns messages with status scheduled whose scheduled_at has
	// passed.
	ListDue(ctx context.Context, now time.Time) ([]model.Message, error)

	// ListScheduled returns all messages still in scheduled state.
	ListScheduled(ctx context.Context) ([]model.Message, error)

	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkError(ctx context.Context, id int64) error

	// CompleteDispatch commits a batch of terminal recipient rows together
	// with the message's sent status in one transaction: either all rows and
	// the status land, or nothing does. A failure leaves the message in its
	// prior state, safe to dispatch again.
	CompleteDispatch(ctx context.Context, messageID int64, results []model.MessageRecipient, at time.Time) error

	// SaveRecipientResult commits a single terminal recipient row.
	SaveRecipientResult(ctx context.Context, result model.MessageRecipient) error

	// DeleteScheduled cancels a scheduled message, removing it and its
	// recipient rows. Fails with ErrNotOwner or ErrNotScheduled otherwise.
	//
	// A poller pass that has already loaded the message will still finish
	// dispatching it; cancellation only guards the not-yet-observed case.
	DeleteScheduled(ctx context.Context, id, userID int64) error
}

type ParticipantRepository interface {
	ListByTypes(ctx context.Context, conferenceID int64, types []string) ([]model.Participant, error)
	FindSecretariatByName(ctx context.Context, conferenceID int64, first, last string) ([]model.Participant, error)

	// ListForMessage returns the participants behind a message's recipient
	// rows, frozen at creation time.
	ListForMessage(ctx context.Context, messageID int64) ([]model.Participant, error)
}
