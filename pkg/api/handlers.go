package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmphub/dmphub/pkg/dmp"
	"github.com/dmphub/dmphub/pkg/matching"
)

// provenanceHeader carries the caller's provenance key. Ownership and splice
// behavior hang off it, so mutating endpoints require it.
const provenanceHeader = "X-Provenance-Id"

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// identifierParam extracts the DMP identifier from the wildcard route
// segment. DOIs contain slashes, so a plain path parameter cannot hold them.
func identifierParam(r *http.Request) string {
	return strings.TrimPrefix(chi.URLParam(r, "*"), "/")
}

func provenanceFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(provenanceHeader))
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func createHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provenance := provenanceFrom(r)
		if provenance == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "missing "+provenanceHeader+" header")
			return
		}
		var body dmp.Record
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "malformed record body: "+err.Error())
			return
		}
		rec, err := h.Service.Create(provenance, body)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func getHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := identifierParam(r)
		version := r.URL.Query().Get("version")
		rec, err := h.Service.Get(identifier, version)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func updateHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provenance := provenanceFrom(r)
		if provenance == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "missing "+provenanceHeader+" header")
			return
		}
		identifier := identifierParam(r)
		note := r.URL.Query().Get("note")
		var body dmp.Record
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "malformed record body: "+err.Error())
			return
		}
		rec, err := h.Service.Update(provenance, identifier, body, note)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		h.Cache.InvalidateRecord(identifier)
		writeJSON(w, http.StatusOK, rec)
	}
}

func tombstoneHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provenance := provenanceFrom(r)
		if provenance == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "missing "+provenanceHeader+" header")
			return
		}
		identifier := identifierParam(r)
		rec, err := h.Service.Tombstone(provenance, identifier)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		h.Cache.InvalidateRecord(identifier)
		writeJSON(w, http.StatusOK, rec)
	}
}

func listVersionsHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refs, err := h.Service.ListVersions(identifierParam(r))
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, refs)
	}
}

type scoreRequest struct {
	Work        matching.CandidateWork `json:"work"`
	Identifiers []string               `json:"identifiers"`
}

type scoreResponse struct {
	Match *matching.Match `json:"match"`
}

func scoreHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "malformed score request: "+err.Error())
			return
		}
		if len(req.Identifiers) == 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "at least one identifier is required")
			return
		}
		records := make([]dmp.Record, 0, len(req.Identifiers))
		for _, identifier := range req.Identifiers {
			rec, err := h.Service.Get(identifier, "")
			if err != nil {
				writeRegistryError(w, err)
				return
			}
			records = append(records, *rec)
		}
		writeJSON(w, http.StatusOK, scoreResponse{Match: h.Comparator.Compare(req.Work, records)})
	}
}

type augmentRequest struct {
	Works []matching.CandidateWork `json:"works"`
}

type augmentResponse struct {
	Identifier string `json:"identifier"`
	Added      int    `json:"added"`
}

func augmentHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := identifierParam(r)
		var req augmentRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "malformed augment request: "+err.Error())
			return
		}
		added, err := h.Service.ApplyLedger(identifier, func(rec dmp.Record) (dmp.Record, int) {
			return h.Augmenter.AddModifications(rec, req.Works)
		})
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		if added > 0 {
			h.Cache.InvalidateRecord(identifier)
		}
		writeJSON(w, http.StatusOK, augmentResponse{Identifier: identifier, Added: added})
	}
}

func getProvenanceHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		p, err := h.Provenances.Get(key)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, "not_found", "provenance "+key+" is not registered")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func putProvenanceHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		var p dmp.Provenance
		if err := decodeBody(r, &p); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "malformed provenance body: "+err.Error())
			return
		}
		p.Key = key
		if err := h.Provenances.Put(p); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func eventsHandler(h *Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		events, err := h.Events.ListByIdentifier(identifierParam(r), limit)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}
