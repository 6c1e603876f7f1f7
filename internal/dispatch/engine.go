// Package dispatch turns a message and its resolved recipients into terminal
// per-recipient delivery records.
//
// Delivery runs in two tiers. The parallel tier fans out over a bounded
// worker pool and commits every recipient row plus the message's sent status
// in a single transaction; it reports a pipeline failure when that commit
// fails, never leaving a partial write behind. The sequential tier is the
// fallback:
// it persists each row individually so partial progress survives, and always
// ends by marking the message sent. Per-recipient failures are data, never
// errors; only infrastructure failure of the parallel tier is an error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/munnorthwest/conference-messaging/internal/model"
	"github.com/munnorthwest/conference-messaging/internal/template"
)

// ErrPipeline marks an infrastructure failure of the parallel tier. The
// caller is expected to fall back to DispatchSequential.
var ErrPipeline = errors.New("dispatch pipeline failure")

const DefaultPoolSize = 10

// Channel delivers one personalized body to one phone number.
type Channel interface {
	Send(ctx context.Context, phone, body string) (providerRef string, err error)
}

// ResultStore is the slice of the message store the engine writes to.
type ResultStore interface {
	// CompleteDispatch commits every recipient row and the message's sent
	// status as one unit; a failure leaves the message untouched, still
	// consistent with "not yet dispatched".
	CompleteDispatch(ctx context.Context, messageID int64, results []model.MessageRecipient, at time.Time) error

	SaveRecipientResult(ctx context.Context, result model.MessageRecipient) error
	MarkSent(ctx context.Context, id int64, at time.Time) error
}

// Outcome summarizes one completed dispatch. Errors holds one
// "<name>: <reason>" entry per failed recipient.
type Outcome struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

type Engine struct {
	channel  Channel
	store    ResultStore
	poolSize int
}

func NewEngine(channel Channel, store ResultStore, poolSize int) *Engine {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Engine{channel: channel, store: store, poolSize: poolSize}
}

// attempt is the in-memory result of one delivery try.
type attempt struct {
	row  model.MessageRecipient
	name string
	err  string
}

// DispatchParallel personalizes and sends to all recipients concurrently,
// then commits all recipient rows and the message's sent status as one
// transaction. A non-nil error wraps ErrPipeline and means nothing was
// committed at all; per-recipient failures are reported through the Outcome.
func (e *Engine) DispatchParallel(ctx context.Context, msg model.Message, recipients []model.Participant) (Outcome, error) {
	attempts := make([]attempt, len(recipients))

	g := new(errgroup.Group)
	g.SetLimit(e.poolSize)
	for i, p := range recipients {
		i, p := i, p
		g.Go(func() error {
			attempts[i] = e.deliver(ctx, msg, p)
			return nil
		})
	}
	// Barrier: no store write happens until every in-flight send is done.
	_ = g.Wait()

	rows := make([]model.MessageRecipient, len(attempts))
	for i, a := range attempts {
		rows[i] = a.row
	}

	if err := e.store.CompleteDispatch(ctx, msg.ID, rows, time.Now().UTC()); err != nil {
		return Outcome{}, fmt.Errorf("%w: commit dispatch: %v", ErrPipeline, err)
	}

	return summarize(attempts), nil
}

// DispatchSequential is the fault-isolating fallback: recipients are handled
// one at a time in submission order and each row is persisted individually,
// so one bad recipient cannot lose the results of others. The message is
// always marked sent at the end, whatever the per-recipient outcomes.
func (e *Engine) DispatchSequential(ctx context.Context, msg model.Message, recipients []model.Participant) Outcome {
	attempts := make([]attempt, 0, len(recipients))

	for _, p := range recipients {
		a := e.deliver(ctx, msg, p)
		if err := e.store.SaveRecipientResult(ctx, a.row); err != nil {
			slog.Error("failed to persist recipient result",
				"message_id", msg.ID, "participant_id", p.ID, "error", err)
		}
		attempts = append(attempts, a)
	}

	if err := e.store.MarkSent(ctx, msg.ID, time.Now().UTC()); err != nil {
		slog.Error("failed to mark message sent", "message_id", msg.ID, "error", err)
	}

	return summarize(attempts)
}

// deliver personalizes and sends to a single recipient. Failures are
// captured in the returned attempt, never raised.
func (e *Engine) deliver(ctx context.Context, msg model.Message, p model.Participant) attempt {
	a := attempt{
		name: p.FullName(),
		row: model.MessageRecipient{
			MessageID:     msg.ID,
			ParticipantID: p.ID,
		},
	}

	body, err := template.Personalize(msg.Content, p)
	if err != nil {
		return a.failed(err.Error())
	}

	ref, err := e.channel.Send(ctx, p.Phone, body)
	if err != nil {
		return a.failed(err.Error())
	}

	now := time.Now().UTC()
	a.row.Status = model.RecipientSent
	a.row.SentAt = &now
	slog.Debug("message delivered",
		"message_id", msg.ID, "participant_id", p.ID, "provider_ref", ref)
	return a
}

func (a attempt) failed(reason string) attempt {
	a.row.Status = model.RecipientFailed
	a.err = reason
	a.row.ErrorMessage = &reason
	return a
}

func summarize(attempts []attempt) Outcome {
	var out Outcome
	for _, a := range attempts {
		if a.row.Status == model.RecipientSent {
			out.Sent++
			continue
		}
		out.Failed++
		out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", a.name, a.err))
	}
	return out
}
