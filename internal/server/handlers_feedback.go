package server

import (
	"net/http"

	"github.com/hansei-ai/hansei/internal/model"
)

// SubmitFeedbackResponse is the POST /v1/thoughts/{thought_id}/feedback
// payload. ForkedThought is present only when the feedback triggered a
// corrective fork.
type SubmitFeedbackResponse struct {
	Feedback      model.Feedback   `json:"feedback"`
	Adjustment    model.Adjustment `json:"adjustment"`
	ForkedThought *model.Thought   `json:"forked_thought,omitempty"`
}

// HandleSubmitFeedback handles POST /v1/thoughts/{thought_id}/feedback.
func (h *Handlers) HandleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	thoughtID, err := pathUUID(r, "thought_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var req model.SubmitFeedbackRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	result, err := h.feedbackSvc.Submit(r.Context(), thoughtID, req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, SubmitFeedbackResponse{
		Feedback:      result.Feedback,
		Adjustment:    result.Adjustment,
		ForkedThought: result.Forked,
	})
}

// ListFeedbackResponse is the GET /v1/thoughts/{thought_id}/feedback payload.
type ListFeedbackResponse struct {
	Feedback []model.Feedback `json:"feedback"`
	Count    int              `json:"count"`
}

// HandleListFeedback handles GET /v1/thoughts/{thought_id}/feedback.
func (h *Handlers) HandleListFeedback(w http.ResponseWriter, r *http.Request) {
	thoughtID, err := pathUUID(r, "thought_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	listed, err := h.feedbackSvc.ListByThought(r.Context(), thoughtID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if listed == nil {
		listed = []model.Feedback{}
	}
	writeJSON(w, r, http.StatusOK, ListFeedbackResponse{Feedback: listed, Count: len(listed)})
}

// HandleFeedbackStats handles GET /v1/users/{user_id}/stats.
// window_days defaults to 30; non-positive values fall back to the default.
func (h *Handlers) HandleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	windowDays := queryInt(r, "window_days", 0)
	stats, err := h.insightSvc.FeedbackStats(r.Context(), userID, windowDays)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if stats.AccuracyTrend == nil {
		stats.AccuracyTrend = []bool{}
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// BiasResponse is the GET /v1/users/{user_id}/bias payload.
type BiasResponse struct {
	Bias float64 `json:"bias"`
}

// HandleAdjustmentBias handles GET /v1/users/{user_id}/bias.
func (h *Handlers) HandleAdjustmentBias(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	bias, err := h.insightSvc.AdjustmentBias(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, BiasResponse{Bias: bias})
}
