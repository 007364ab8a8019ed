package storage

import "time"

// ToolExecution is one dispatched tool call.
type ToolExecution struct {
	ID             string    `json:"id" db:"id"`
	TurnID         string    `json:"turn_id" db:"turn_id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	CallID         string    `json:"call_id" db:"call_id"`
	ToolName       string    `json:"tool_name" db:"tool_name"`
	Provider       string    `json:"provider" db:"provider"`
	Caller         string    `json:"caller" db:"caller"`
	Input          string    `json:"input" db:"input"`
	Output         string    `json:"output" db:"output"`
	Error          string    `json:"error" db:"error"`
	DurationMs     int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TurnRecord is the persisted outcome of a turn. Tool events and citations
// are stored as JSON documents.
type TurnRecord struct {
	ID              string          `json:"id" db:"id"`
	ConversationID  string          `json:"conversation_id" db:"conversation_id"`
	Status          string          `json:"status" db:"status"`
	Content         string          `json:"content" db:"content"`
	Reasoning       string          `json:"reasoning" db:"reasoning"`
	ContainerID     string          `json:"container_id" db:"container_id"`
	ThinkingSeconds *int            `json:"thinking_seconds,omitempty" db:"thinking_seconds"`
	ToolEvents      string          `json:"tool_events" db:"tool_events"`
	Citations       string          `json:"citations" db:"citations"`
	Images          JSONStringArray `json:"images" db:"images"`
	Suggestions     JSONStringArray `json:"suggestions" db:"suggestions"`
	Error           string          `json:"error" db:"error"`
	StartedAt       time.Time       `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
}
