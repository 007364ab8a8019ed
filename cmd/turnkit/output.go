package main

import (
	"encoding/json"
	"io"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/turn"
)

type toolEventOutput struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Status string         `json:"status"`
	Input  map[string]any `json:"input,omitempty"`
	Result *string        `json:"result,omitempty"`
}

type finalOutput struct {
	TurnID          string            `json:"turn_id,omitempty"`
	Content         string            `json:"content"`
	Reasoning       string            `json:"reasoning,omitempty"`
	Suggestions     []string          `json:"suggestions,omitempty"`
	Images          []turn.ImageRef   `json:"images,omitempty"`
	Citations       []json.RawMessage `json:"citations,omitempty"`
	ToolEvents      []toolEventOutput `json:"tool_events,omitempty"`
	ContainerID     string            `json:"container_id,omitempty"`
	ThinkingSeconds *int              `json:"thinking_seconds,omitempty"`
}

func newFinalOutput(turnID string, final *turn.Final) (*finalOutput, error) {
	snap := final.Snapshot
	out := &finalOutput{
		TurnID:          turnID,
		Content:         final.Message.Content,
		Reasoning:       snap.Reasoning,
		Suggestions:     final.Suggestions,
		Images:          snap.Images,
		ContainerID:     snap.ContainerID,
		ThinkingSeconds: snap.ThinkingSeconds,
	}
	for _, c := range snap.Citations {
		raw, err := aisdk.EncodeCitation(c)
		if err != nil {
			return nil, err
		}
		out.Citations = append(out.Citations, raw)
	}
	for _, ev := range snap.ToolEvents {
		out.ToolEvents = append(out.ToolEvents, toolEventOutput{
			ID:     ev.ID,
			Name:   ev.Name,
			Status: string(ev.Status),
			Input:  ev.Input,
			Result: ev.Result,
		})
	}
	return out, nil
}

func writeFinalJSON(w io.Writer, turnID string, final *turn.Final) error {
	out, err := newFinalOutput(turnID, final)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
