// Package service wires recipient resolution, the dispatch engine and the
// store into the two entry points that exist for a message: the immediate
// send path and the scheduler's due-message pass.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/munnorthwest/conference-messaging/internal/dispatch"
	"github.com/munnorthwest/conference-messaging/internal/model"
	"github.com/munnorthwest/conference-messaging/internal/repo"
	"github.com/munnorthwest/conference-messaging/internal/resolve"
)

// Engine is the two-tier dispatch pipeline. The parallel tier's error return
// is a pipeline failure; the caller invokes the sequential fallback.
type Engine interface {
	DispatchParallel(ctx context.Context, msg model.Message, recipients []model.Participant) (dispatch.Outcome, error)
	DispatchSequential(ctx context.Context, msg model.Message, recipients []model.Participant) dispatch.Outcome
}

// SummaryCache keeps dispatch outcomes for later status queries. It is
// best-effort; a cache failure never fails a dispatch.
type SummaryCache interface {
	StoreSummary(ctx context.Context, messageID int64, out dispatch.Outcome) error
}

type SendRequest struct {
	ConferenceID int64
	SentBy       int64
	Content      string
	Selectors    []string
	ScheduledAt  *time.Time
}

type Dispatcher struct {
	resolver *resolve.Resolver
	messages repo.MessageRepository
	engine   Engine
	cache    SummaryCache
}

func NewDispatcher(resolver *resolve.Resolver, messages repo.MessageRepository, engine Engine, cache SummaryCache) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		messages: messages,
		engine:   engine,
		cache:    cache,
	}
}

// SendNow resolves, persists and immediately dispatches a message. A
// resolution failure creates no message. The returned outcome reflects
// per-recipient delivery results; partial failure is still an overall send.
func (d *Dispatcher) SendNow(ctx context.Context, req SendRequest) (model.Message, dispatch.Outcome, error) {
	msg, recipients, err := d.create(ctx, req, model.MessagePending, nil)
	if err != nil {
		return model.Message{}, dispatch.Outcome{}, err
	}

	out := runDispatch(ctx, d.engine, msg, recipients)
	d.cacheSummary(ctx, msg.ID, out)
	msg.Status = model.MessageSent
	return msg, out, nil
}

// Schedule resolves and persists a message for a later poller pass. The
// recipient set is frozen now; the poller never re-resolves selectors.
func (d *Dispatcher) Schedule(ctx context.Context, req SendRequest) (model.Message, error) {
	if req.ScheduledAt == nil {
		return model.Message{}, fmt.Errorf("scheduled_at is required")
	}
	msg, _, err := d.create(ctx, req, model.MessageScheduled, req.ScheduledAt)
	return msg, err
}

func (d *Dispatcher) create(ctx context.Context, req SendRequest, status model.MessageStatus, scheduledAt *time.Time) (model.Message, []model.Participant, error) {
	recipients, err := d.resolver.Resolve(ctx, req.ConferenceID, req.Selectors)
	if err != nil {
		return model.Message{}, nil, err
	}

	ids := make([]int64, len(recipients))
	for i, p := range recipients {
		ids[i] = p.ID
	}

	msg := model.Message{
		Content:     req.Content,
		SentBy:      req.SentBy,
		Status:      status,
		ScheduledAt: scheduledAt,
	}
	if err := d.messages.Create(ctx, &msg, ids); err != nil {
		return model.Message{}, nil, fmt.Errorf("create message: %w", err)
	}
	return msg, recipients, nil
}

func (d *Dispatcher) cacheSummary(ctx context.Context, messageID int64, out dispatch.Outcome) {
	if d.cache == nil {
		return
	}
	if err := d.cache.StoreSummary(ctx, messageID, out); err != nil {
		slog.Warn("failed to cache dispatch summary", "message_id", messageID, "error", err)
	}
}

// runDispatch runs the parallel tier and falls back to the sequential tier
// on pipeline failure. Per-recipient failures never reach here as errors.
func runDispatch(ctx context.Context, engine Engine, msg model.Message, recipients []model.Participant) dispatch.Outcome {
	out, err := engine.DispatchParallel(ctx, msg, recipients)
	if err != nil {
		slog.Warn("parallel dispatch failed, falling back to sequential",
			"message_id", msg.ID, "error", err)
		out = engine.DispatchSequential(ctx, msg, recipients)
	}
	return out
}
