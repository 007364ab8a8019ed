package aisdk

import (
	"encoding/json"
	"fmt"
)

// ToolStatus is the lifecycle phase of a tool event.
type ToolStatus string

const (
	ToolStatusStart ToolStatus = "start"
	ToolStatusEnd   ToolStatus = "end"
)

// CallerKind distinguishes model-issued calls from sandbox-issued ones.
type CallerKind string

const (
	CallerDirect       CallerKind = "direct"
	CallerProgrammatic CallerKind = "programmatic"
)

// Caller identifies who issued a tool call. The zero value is a direct call.
type Caller struct {
	Kind   CallerKind
	ToolID string
}

// Direct returns the caller of a model-issued call.
func Direct() Caller { return Caller{Kind: CallerDirect} }

// Programmatic returns the caller of a call issued by the tool with toolID.
func Programmatic(toolID string) Caller {
	return Caller{Kind: CallerProgrammatic, ToolID: toolID}
}

// IsProgrammatic reports whether a sandbox issued the call.
func (c Caller) IsProgrammatic() bool { return c.Kind == CallerProgrammatic }

func (c Caller) String() string {
	if c.IsProgrammatic() {
		return fmt.Sprintf("programmatic(%s)", c.ToolID)
	}
	return string(CallerDirect)
}

type callerWire struct {
	Type   CallerKind `json:"type"`
	ToolID string     `json:"tool_id,omitempty"`
}

func (c Caller) MarshalJSON() ([]byte, error) {
	if !c.IsProgrammatic() {
		return json.Marshal(callerWire{Type: CallerDirect})
	}
	return json.Marshal(callerWire{Type: CallerProgrammatic, ToolID: c.ToolID})
}

// UnmarshalJSON accepts either a bare kind string or {"type","tool_id"}.
func (c *Caller) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		c.Kind = CallerKind(kind)
		c.ToolID = ""
		if c.Kind != CallerProgrammatic {
			c.Kind = CallerDirect
		}
		return nil
	}
	var w callerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.ToolID = w.ToolID
	switch w.Type {
	case CallerProgrammatic, "code_execution":
		c.Kind = CallerProgrammatic
	default:
		c.Kind = CallerDirect
		c.ToolID = ""
	}
	return nil
}

// ToolEvent describes one phase of a tool invocation.
type ToolEvent struct {
	ID      string
	Name    string
	Status  ToolStatus
	Input   map[string]any
	Result  *string
	Caller  Caller
	Payload ToolPayload
}

// Clone returns a copy that shares no maps with e.
func (e ToolEvent) Clone() ToolEvent {
	out := e
	if e.Input != nil {
		out.Input = make(map[string]any, len(e.Input))
		for k, v := range e.Input {
			out.Input[k] = v
		}
	}
	if e.Result != nil {
		r := *e.Result
		out.Result = &r
	}
	return out
}

// ToWire converts the event to its serialized form.
func (e ToolEvent) ToWire() (*ToolUse, error) {
	w := &ToolUse{
		ID:     e.ID,
		Name:   e.Name,
		Status: e.Status,
		Input:  e.Input,
		Result: e.Result,
		Caller: e.Caller,
	}
	if e.Payload != nil {
		raw, err := MarshalPayload(e.Payload)
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	}
	return w, nil
}

// ToolEvent converts a decoded wire event. Events without a name or with an
// unknown status are rejected.
func (w *ToolUse) ToolEvent() (ToolEvent, error) {
	if w.Name == "" {
		return ToolEvent{}, fmt.Errorf("tool event has no name")
	}
	if w.Status != ToolStatusStart && w.Status != ToolStatusEnd {
		return ToolEvent{}, fmt.Errorf("tool event %s has unknown status %q", w.Name, w.Status)
	}
	e := ToolEvent{
		ID:     w.ID,
		Name:   w.Name,
		Status: w.Status,
		Input:  w.Input,
		Result: w.Result,
		Caller: w.Caller,
	}
	if e.Caller.Kind == "" {
		e.Caller = Direct()
	}
	if len(w.Payload) > 0 && string(w.Payload) != "null" {
		p, err := UnmarshalPayload(w.Payload)
		if err != nil {
			return ToolEvent{}, err
		}
		e.Payload = p
	}
	return e, nil
}
