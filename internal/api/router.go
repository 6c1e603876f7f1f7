package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("POST /v1/messages", h.CreateMessage)
	mux.HandleFunc("GET /v1/messages/scheduled", h.ListScheduled)
	mux.HandleFunc("DELETE /v1/messages/{id}", h.CancelMessage)
	mux.HandleFunc("GET /v1/messages/{id}/summary", h.GetSummary)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("conference-messaging"))
	})

	return mux
}
