package aisdk

import (
	"encoding/json"
	"fmt"
)

// PayloadKind names a specialized tool payload variant.
type PayloadKind string

const (
	PayloadCodeExecution PayloadKind = "code_execution"
	PayloadWebSearch     PayloadKind = "web_search"
	PayloadWebFetch      PayloadKind = "web_fetch"
)

// ToolPayload is the closed set of specialized tool payloads. A nil
// ToolPayload means the tool has none.
type ToolPayload interface {
	Kind() PayloadKind
	isToolPayload()
}

// CodeExecutionPayload is the trace of a sandboxed code run.
type CodeExecutionPayload struct {
	Code       string   `json:"code"`
	Stdout     string   `json:"stdout,omitempty"`
	Stderr     string   `json:"stderr,omitempty"`
	ReturnCode int      `json:"return_code"`
	Files      []string `json:"files,omitempty"`
}

// WebSearchPayload summarizes a search call.
type WebSearchPayload struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results,omitempty"`
}

// SearchHit is one result of a web search.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// WebFetchPayload summarizes a fetched page.
type WebFetchPayload struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Bytes       int    `json:"bytes"`
}

func (CodeExecutionPayload) Kind() PayloadKind { return PayloadCodeExecution }
func (WebSearchPayload) Kind() PayloadKind     { return PayloadWebSearch }
func (WebFetchPayload) Kind() PayloadKind      { return PayloadWebFetch }

func (CodeExecutionPayload) isToolPayload() {}
func (WebSearchPayload) isToolPayload()     {}
func (WebFetchPayload) isToolPayload()      {}

type payloadEnvelope struct {
	Type PayloadKind     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalPayload encodes p with its variant tag.
func MarshalPayload(p ToolPayload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(payloadEnvelope{Type: p.Kind(), Data: data})
}

// UnmarshalPayload decodes a tagged payload. Unknown tags are an error.
func UnmarshalPayload(raw json.RawMessage) (ToolPayload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	switch env.Type {
	case PayloadCodeExecution:
		var p CodeExecutionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PayloadWebSearch:
		var p WebSearchPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PayloadWebFetch:
		var p WebFetchPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload type %q", env.Type)
	}
}
