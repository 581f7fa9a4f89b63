package copilot

import (
	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/core/common/validation"
)

type ChatRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id,omitempty"`
}

func (r *ChatRequest) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("query", r.Query).Required().MaxLength(4000)
	v.Field("thread_id", r.ThreadID).MaxLength(128)
	return v.Validate()
}

type ChatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
	SQL      string `json:"sql,omitempty"`
}

type RiskTopicResponse struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Users       int    `json:"users"`
}

type RiskTopicsResponse struct {
	Topics []RiskTopicResponse `json:"topics"`
}

func (a *Answer) ToResponse() ChatResponse {
	return ChatResponse{
		Response: a.Response,
		ThreadID: a.ThreadID,
		SQL:      a.SQL,
	}
}

func (t TopicSummary) ToResponse() RiskTopicResponse {
	return RiskTopicResponse{
		Topic:       t.Topic.String(),
		Description: t.Description,
		Users:       t.Users,
	}
}
