package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRiskViewBuilt  = "riskview.built"
	EventTypeQueryCompleted = "query.completed"
)

type RiskViewBuiltEvent struct {
	BaseEvent
	Path        string         `json:"path"`
	Users       int            `json:"users"`
	AtRisk      int            `json:"at_risk"`
	TopicCounts map[string]int `json:"topic_counts"`
	Duration    time.Duration  `json:"duration"`
}

func NewRiskViewBuiltEvent(path string, users, atRisk int, topicCounts map[string]int, duration time.Duration) *RiskViewBuiltEvent {
	return &RiskViewBuiltEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRiskViewBuilt,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"path":         path,
				"users":        users,
				"at_risk":      atRisk,
				"topic_counts": topicCounts,
				"duration_ms":  duration.Milliseconds(),
			},
		},
		Path:        path,
		Users:       users,
		AtRisk:      atRisk,
		TopicCounts: topicCounts,
		Duration:    duration,
	}
}

type QueryCompletedEvent struct {
	BaseEvent
	ThreadID  string        `json:"thread_id"`
	Succeeded bool          `json:"succeeded"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
}

func NewQueryCompletedEvent(threadID string, succeeded bool, attempts int, duration time.Duration) *QueryCompletedEvent {
	return &QueryCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeQueryCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"thread_id":   threadID,
				"succeeded":   succeeded,
				"attempts":    attempts,
				"duration_ms": duration.Milliseconds(),
			},
		},
		ThreadID:  threadID,
		Succeeded: succeeded,
		Attempts:  attempts,
		Duration:  duration,
	}
}
