package copilot

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/frahmantamala/iam-copilot/internal/transport"
)

type ServiceAPI interface {
	Ask(ctx context.Context, threadID, question string) (*Answer, error)
	RiskTopics(ctx context.Context) ([]TopicSummary, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Chat: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	answer, err := h.Service.Ask(r.Context(), req.ThreadID, req.Query)
	if err != nil {
		h.Logger.Error("Chat: service error", "error", err, "thread_id", req.ThreadID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, answer.ToResponse())
}

func (h *Handler) GetRiskTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.Service.RiskTopics(r.Context())
	if err != nil {
		h.Logger.Error("GetRiskTopics: failed to count topics", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	resp := RiskTopicsResponse{Topics: make([]RiskTopicResponse, 0, len(topics))}
	for _, t := range topics {
		resp.Topics = append(resp.Topics, t.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
