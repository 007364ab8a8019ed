package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/turn"
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
)

var ErrTurnNotFound = errors.New("turn not found")

// CreateToolExecution creates a new tool execution record in the database
func CreateToolExecution(ctx context.Context, db Execer, execution *ToolExecution) error {
	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now()
	}
	if execution.Caller == "" {
		execution.Caller = string(aisdk.CallerDirect)
	}

	query := `INSERT INTO tool_executions (id, turn_id, conversation_id, call_id, tool_name, provider, caller, input, output, error, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		execution.ID,
		execution.TurnID,
		execution.ConversationID,
		execution.CallID,
		execution.ToolName,
		execution.Provider,
		execution.Caller,
		execution.Input,
		execution.Output,
		execution.Error,
		execution.DurationMs,
		execution.CreatedAt,
	)
	return err
}

// GetToolExecutionsByTurnID returns the executions of a turn in creation order.
func GetToolExecutionsByTurnID(ctx context.Context, db sqlscan.Querier, turnID string) ([]ToolExecution, error) {
	query := `SELECT id, turn_id, conversation_id, call_id, tool_name, provider, caller, input, output, error, duration_ms, created_at FROM tool_executions WHERE turn_id = ? ORDER BY created_at, rowid`
	var executions []ToolExecution
	if err := sqlscan.Select(ctx, db, &executions, query, turnID); err != nil {
		return nil, err
	}
	return executions, nil
}

// SaveTurn inserts or replaces a turn record.
func SaveTurn(ctx context.Context, db Execer, rec *TurnRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `INSERT INTO turns (id, conversation_id, status, content, reasoning, container_id, thinking_seconds, tool_events, citations, images, suggestions, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		content = excluded.content,
		reasoning = excluded.reasoning,
		container_id = excluded.container_id,
		thinking_seconds = excluded.thinking_seconds,
		tool_events = excluded.tool_events,
		citations = excluded.citations,
		images = excluded.images,
		suggestions = excluded.suggestions,
		error = excluded.error,
		finished_at = excluded.finished_at`
	_, err := db.ExecContext(ctx, query,
		rec.ID,
		rec.ConversationID,
		rec.Status,
		rec.Content,
		rec.Reasoning,
		rec.ContainerID,
		rec.ThinkingSeconds,
		rec.ToolEvents,
		rec.Citations,
		rec.Images,
		rec.Suggestions,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	return err
}

// GetTurnByID retrieves a turn by its ID
func GetTurnByID(ctx context.Context, db sqlscan.Querier, id string) (*TurnRecord, error) {
	query := `SELECT id, conversation_id, status, content, reasoning, container_id, thinking_seconds, tool_events, citations, images, suggestions, error, started_at, finished_at FROM turns WHERE id = ?`
	var rec TurnRecord
	if err := sqlscan.Get(ctx, db, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTurnNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

// LastContainerID returns the container id of the newest turn in a
// conversation that recorded one, or "" if none did.
func LastContainerID(ctx context.Context, db sqlscan.Querier, conversationID string) (string, error) {
	query := `SELECT container_id FROM turns WHERE conversation_id = ? AND container_id <> '' ORDER BY started_at DESC, rowid DESC LIMIT 1`
	var id string
	if err := sqlscan.Get(ctx, db, &id, query, conversationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// NewTurnRecord flattens a turn into its persisted form.
func NewTurnRecord(t *turn.Turn) (*TurnRecord, error) {
	snap := t.Snapshot()
	rec := &TurnRecord{
		ID:              t.ID,
		ConversationID:  t.ConversationID,
		Status:          string(t.Status()),
		Content:         snap.Content,
		Reasoning:       snap.Reasoning,
		ContainerID:     snap.ContainerID,
		ThinkingSeconds: snap.ThinkingSeconds,
		Images:          JSONStringArray{},
		Suggestions:     JSONStringArray{},
		StartedAt:       t.StartedAt,
	}
	if !t.FinishedAt.IsZero() {
		finished := t.FinishedAt
		rec.FinishedAt = &finished
	}
	if err := t.Err(); err != nil {
		rec.Error = err.Error()
	}
	if final := t.Final(); final != nil {
		rec.Content = final.Message.Content
		rec.Suggestions = final.Suggestions
	}
	for _, img := range snap.Images {
		rec.Images = append(rec.Images, img.URL)
	}

	events := make([]*aisdk.ToolUse, 0, len(snap.ToolEvents))
	for _, ev := range snap.ToolEvents {
		wire, err := ev.ToWire()
		if err != nil {
			return nil, err
		}
		events = append(events, wire)
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool events: %w", err)
	}
	rec.ToolEvents = string(raw)

	citations := make([]json.RawMessage, 0, len(snap.Citations))
	for _, c := range snap.Citations {
		enc, err := aisdk.EncodeCitation(c)
		if err != nil {
			return nil, err
		}
		citations = append(citations, enc)
	}
	raw, err = json.Marshal(citations)
	if err != nil {
		return nil, fmt.Errorf("failed to encode citations: %w", err)
	}
	rec.Citations = string(raw)
	return rec, nil
}

// DecodeToolEvents parses the stored tool events of a record.
func (r *TurnRecord) DecodeToolEvents() ([]aisdk.ToolEvent, error) {
	var events []aisdk.ToolUse
	if err := json.Unmarshal([]byte(r.ToolEvents), &events); err != nil {
		return nil, fmt.Errorf("failed to decode tool events: %w", err)
	}
	out := make([]aisdk.ToolEvent, 0, len(events))
	for i := range events {
		ev, err := events[i].ToolEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// DecodeCitations parses the stored citations of a record.
func (r *TurnRecord) DecodeCitations() ([]aisdk.Citation, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(r.Citations), &raws); err != nil {
		return nil, fmt.Errorf("failed to decode citations: %w", err)
	}
	out := make([]aisdk.Citation, 0, len(raws))
	for _, raw := range raws {
		c, err := aisdk.DecodeCitation(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// RecordToolExecution implements the dispatcher's execution recorder.
func (d *DB) RecordToolExecution(ctx context.Context, execution *ToolExecution) error {
	return CreateToolExecution(ctx, d.db, execution)
}

// SaveTurn persists t.
func (d *DB) SaveTurn(ctx context.Context, t *turn.Turn) error {
	rec, err := NewTurnRecord(t)
	if err != nil {
		return err
	}
	return SaveTurn(ctx, d.db, rec)
}

// LastContainerID returns the newest container id of a conversation.
func (d *DB) LastContainerID(ctx context.Context, conversationID string) (string, error) {
	return LastContainerID(ctx, d.db, conversationID)
}
