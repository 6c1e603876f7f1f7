package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/munnorthwest/conference-messaging/internal/lock"
	"github.com/munnorthwest/conference-messaging/internal/model"
	"github.com/munnorthwest/conference-messaging/internal/repo"
)

// Poller runs the recurring due-message pass. Multiple worker processes host
// an identical poller; the advisory lock elects one runner per pass, the
// others skip without blocking.
type Poller struct {
	locker       lock.Locker
	messages     repo.MessageRepository
	participants repo.ParticipantRepository
	engine       Engine
	cache        SummaryCache
	now          func() time.Time
}

func NewPoller(locker lock.Locker, messages repo.MessageRepository, participants repo.ParticipantRepository, engine Engine, cache SummaryCache) *Poller {
	return &Poller{
		locker:       locker,
		messages:     messages,
		participants: participants,
		engine:       engine,
		cache:        cache,
		now:          time.Now,
	}
}

// RunPass is the scheduler tick. It processes every due message, isolating
// failures per message: a message that cannot be dispatched is marked error
// and the pass continues. Messages in error state are terminal; no retry
// pass exists for them.
func (p *Poller) RunPass(ctx context.Context) {
	release, ok, err := p.locker.TryAcquire(ctx)
	if err != nil {
		slog.Error("poller lock acquire failed", "error", err)
		return
	}
	if !ok {
		slog.Debug("poller pass skipped, lock held by another worker")
		return
	}
	defer func() {
		if err := release(ctx); err != nil {
			slog.Error("poller lock release failed", "error", err)
		}
	}()

	due, err := p.messages.ListDue(ctx, p.now().UTC())
	if err != nil {
		slog.Error("failed to list due messages", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	slog.Info("processing due messages", "count", len(due))

	for _, msg := range due {
		if err := p.process(ctx, msg); err != nil {
			slog.Error("failed to process due message", "message_id", msg.ID, "error", err)
			if markErr := p.messages.MarkError(ctx, msg.ID); markErr != nil {
				slog.Error("failed to mark message error", "message_id", msg.ID, "error", markErr)
			}
		}
	}
}

func (p *Poller) process(ctx context.Context, msg model.Message) error {
	// Recipients were frozen as rows at schedule time; selectors are never
	// re-resolved here.
	recipients, err := p.participants.ListForMessage(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipient rows for message")
	}

	out := runDispatch(ctx, p.engine, msg, recipients)
	if p.cache != nil {
		if err := p.cache.StoreSummary(ctx, msg.ID, out); err != nil {
			slog.Warn("failed to cache dispatch summary", "message_id", msg.ID, "error", err)
		}
	}

	slog.Info("dispatched scheduled message",
		"message_id", msg.ID, "sent", out.Sent, "failed", out.Failed)
	return nil
}
