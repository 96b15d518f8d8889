package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/spendbook/internal/api/middleware"
	"github.com/dvloznov/spendbook/internal/jobs"
	"github.com/dvloznov/spendbook/internal/jobs/inmemory"
	"github.com/dvloznov/spendbook/internal/statements"
)

// JobQueue enqueues and cancels ingest jobs.
type JobQueue interface {
	jobs.Publisher
	jobs.Canceler
}

// JobsHandler handles ingest job endpoints.
type JobsHandler struct {
	queue      JobQueue
	store      jobs.JobStore
	statements *statements.Service
}

func NewJobsHandler(queue JobQueue, store jobs.JobStore, s *statements.Service) *JobsHandler {
	return &JobsHandler{queue: queue, store: store, statements: s}
}

// Enqueue handles POST /api/statements/{id}/ingest
func (h *JobsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.statements.Get(r.Context(), id); err != nil {
		middleware.WriteServiceError(w, r, "Failed to get statement", err)
		return
	}

	job := &jobs.IngestJob{StatementID: id}
	if err := h.queue.PublishIngest(r.Context(), job); err != nil {
		if errors.Is(err, inmemory.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue is shutting down")
			return
		}
		middleware.WriteServiceError(w, r, "Failed to enqueue ingest job", err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// List handles GET /api/jobs?statement_id=&status=&limit=&offset=
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobs.JobFilter{
		StatementID: q.Get("statement_id"),
		Status:      jobs.JobStatus(q.Get("status")),
	}
	var err error
	if s := q.Get("limit"); s != "" {
		if filter.Limit, err = strconv.Atoi(s); err != nil || filter.Limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}
	if s := q.Get("offset"); s != "" {
		if filter.Offset, err = strconv.Atoi(s); err != nil || filter.Offset < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to list jobs", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// Get handles GET /api/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to get job", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// Cancel handles POST /api/jobs/{id}/cancel. A finished job is returned as is.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to cancel job", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}
