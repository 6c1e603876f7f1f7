package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/munnorthwest/conference-messaging/internal/cache"
	"github.com/munnorthwest/conference-messaging/internal/dispatch"
	"github.com/munnorthwest/conference-messaging/internal/model"
	"github.com/munnorthwest/conference-messaging/internal/repo"
	"github.com/munnorthwest/conference-messaging/internal/resolve"
	"github.com/munnorthwest/conference-messaging/internal/scheduler"
	"github.com/munnorthwest/conference-messaging/internal/service"
)

// DispatchService is the slice of the dispatcher the handlers use.
type DispatchService interface {
	SendNow(ctx context.Context, req service.SendRequest) (model.Message, dispatch.Outcome, error)
	Schedule(ctx context.Context, req service.SendRequest) (model.Message, error)
}

type Handler struct {
	dispatcher DispatchService
	messages   repo.MessageRepository
	summaries  cache.SummaryCache
	sched      *scheduler.Scheduler
}

func NewHandler(d DispatchService, messages repo.MessageRepository, summaries cache.SummaryCache, s *scheduler.Scheduler) *Handler {
	return &Handler{dispatcher: d, messages: messages, summaries: summaries, sched: s}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createMessageRequest struct {
	ConferenceID int64    `json:"conferenceId"`
	SentBy       int64    `json:"sentBy"`
	Content      string   `json:"content"`
	Selectors    []string `json:"selectors"`
	ScheduledAt  string   `json:"scheduledAt,omitempty"`
}

// CreateMessage accepts a send-or-schedule request. A request without
// scheduledAt dispatches immediately and returns the delivery summary; one
// with a future scheduledAt is left for the poller.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Selectors) == 0 {
		writeError(w, http.StatusBadRequest, "selectors are required")
		return
	}

	sreq := service.SendRequest{
		ConferenceID: req.ConferenceID,
		SentBy:       req.SentBy,
		Content:      req.Content,
		Selectors:    req.Selectors,
	}

	if req.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid scheduledAt: "+err.Error())
			return
		}
		if at.After(time.Now()) {
			sreq.ScheduledAt = &at
			msg, err := h.dispatcher.Schedule(r.Context(), sreq)
			if err != nil {
				h.writeDispatchError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, scheduledMessageView(msg))
			return
		}
		// A past scheduledAt falls through to an immediate send.
	}

	msg, out, err := h.dispatcher.SendNow(r.Context(), sreq)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             msg.ID,
		"status":         msg.Status,
		"recipientCount": msg.RecipientCount,
		"summary":        out,
	})
}

func (h *Handler) writeDispatchError(w http.ResponseWriter, err error) {
	if errors.Is(err, resolve.ErrNoRecipients) {
		writeError(w, http.StatusUnprocessableEntity, "no recipients found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.ListScheduled(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, scheduledMessageView(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// CancelMessage removes a scheduled message and its recipient rows. Only the
// owner may cancel, and only while the message is still scheduled.
func (h *Handler) CancelMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	switch err := h.messages.DeleteScheduled(r.Context(), id, userID); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, repo.ErrNotOwner):
		writeError(w, http.StatusForbidden, "message not owned by user")
	case errors.Is(err, repo.ErrNotScheduled):
		writeError(w, http.StatusConflict, "message is not scheduled")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	out, ok, err := h.summaries.GetSummary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no summary for message")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running": h.sched.IsRunning(),
		"stats":   h.sched.Snapshot(),
	})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func scheduledMessageView(m model.Message) map[string]any {
	view := map[string]any{
		"id":             m.ID,
		"status":         m.Status,
		"content":        m.Content,
		"recipientCount": m.RecipientCount,
	}
	if m.ScheduledAt != nil {
		view["scheduledAt"] = m.ScheduledAt.UTC().Format(time.RFC3339)
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
