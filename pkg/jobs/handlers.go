package jobs

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmphub/dmphub/pkg/matching"
)

type enqueueRequest struct {
	Identifier     string                   `json:"identifier"`
	Harvester      string                   `json:"harvester"`
	IdempotencyKey string                   `json:"idempotencyKey"`
	Works          []matching.CandidateWork `json:"works"`
}

type listResponse struct {
	Jobs          []AugmentJob `json:"jobs"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
	TotalSize     int          `json:"totalSize"`
}

type jobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRouter creates the chi router for the augment-job API.
func NewRouter(store *JobStore, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{store: store, logger: logger}

	r := chi.NewRouter()
	r.Post("/", h.enqueue)
	r.Get("/", h.list)
	r.Get("/{jobID}", h.get)
	r.Delete("/{jobID}", h.cancel)
	return r
}

type handlers struct {
	store  *JobStore
	logger *slog.Logger
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding job response", "error", err)
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, jobError{Code: code, Message: message})
}

func (h *handlers) enqueue(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "malformed enqueue request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Identifier) == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "identifier is required")
		return
	}
	if len(req.Works) == 0 {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "at least one candidate work is required")
		return
	}
	if req.Harvester == "" {
		req.Harvester = "manual"
	}

	job, err := h.store.Enqueue(req.Identifier, req.Harvester, req.IdempotencyKey, req.Works)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, job)
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := h.store.Get(jobID)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	if job == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "job "+jobID+" does not exist")
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := JobListFilter{
		Identifier: q.Get("identifier"),
		Harvester:  q.Get("harvester"),
		State:      q.Get("state"),
	}
	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "pageSize must be a non-negative integer")
			return
		}
		pageSize = n
	}

	jobs, nextToken, total, err := h.store.List(filter, pageSize, q.Get("pageToken"))
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse{Jobs: jobs, NextPageToken: nextToken, TotalSize: total})
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.store.Cancel(jobID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			h.writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		h.writeError(w, http.StatusConflict, "conflict", err.Error())
		return
	}
	job, err := h.store.Get(jobID)
	if err != nil || job == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"id": jobID, "state": string(JobStateCanceled)})
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}
