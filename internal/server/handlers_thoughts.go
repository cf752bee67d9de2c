package server

import (
	"net/http"

	"github.com/hansei-ai/hansei/internal/model"
	"github.com/hansei-ai/hansei/internal/storage"
)

// HandleCreateThought handles POST /v1/journals/{journal_id}/thoughts.
func (h *Handlers) HandleCreateThought(w http.ResponseWriter, r *http.Request) {
	journalID, err := pathUUID(r, "journal_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req model.CreateThoughtRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	t, err := h.thoughtSvc.Create(r.Context(), journalID, req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, t)
}

// HandleGetThought handles GET /v1/thoughts/{thought_id}.
func (h *Handlers) HandleGetThought(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "thought_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	t, err := h.thoughtSvc.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// ForkThoughtRequest is the POST /v1/thoughts/{thought_id}/fork payload.
// Absent fields are copied from the parent version.
type ForkThoughtRequest struct {
	Title      *string        `json:"title,omitempty"`
	Content    *string        `json:"content,omitempty"`
	Verdict    *model.Verdict `json:"verdict,omitempty"`
	Confidence *int           `json:"confidence,omitempty"`
	Timeline   *string        `json:"timeline,omitempty"`
	Reasoning  *string        `json:"reasoning,omitempty"`
}

// HandleForkThought handles POST /v1/thoughts/{thought_id}/fork, the manual
// revision path. A retired parent yields 409; the caller should re-read the
// chain and retry against the current version.
func (h *Handlers) HandleForkThought(w http.ResponseWriter, r *http.Request) {
	parentID, err := pathUUID(r, "thought_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req ForkThoughtRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	child, err := h.thoughtSvc.Fork(r.Context(), parentID, storage.ForkOverrides{
		Title:      req.Title,
		Content:    req.Content,
		Verdict:    req.Verdict,
		Confidence: req.Confidence,
		Timeline:   req.Timeline,
		Reasoning:  req.Reasoning,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, child)
}

// EvolutionResponse is the GET /v1/thoughts/{thought_id}/evolution payload.
type EvolutionResponse struct {
	Versions []model.Thought `json:"versions"`
	Count    int             `json:"count"`
}

// HandleEvolution handles GET /v1/thoughts/{thought_id}/evolution.
func (h *Handlers) HandleEvolution(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "thought_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	chain, err := h.thoughtSvc.Evolution(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, EvolutionResponse{Versions: chain, Count: len(chain)})
}

// ListThoughtsResponse is the GET /v1/journals/{journal_id}/thoughts payload.
type ListThoughtsResponse struct {
	Thoughts []model.Thought `json:"thoughts"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// HandleListThoughts handles GET /v1/journals/{journal_id}/thoughts.
// Only current versions are listed, newest first.
func (h *Handlers) HandleListThoughts(w http.ResponseWriter, r *http.Request) {
	journalID, err := pathUUID(r, "journal_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	listed, total, err := h.thoughtSvc.ListByJournal(r.Context(), journalID, limit, offset)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if listed == nil {
		listed = []model.Thought{}
	}
	writeJSON(w, r, http.StatusOK, ListThoughtsResponse{
		Thoughts: listed,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}
