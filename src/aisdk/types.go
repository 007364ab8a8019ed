// Package aisdk holds the wire and data types shared by the provider client,
// the frame reader, the turn accumulator and the tool dispatcher.
package aisdk

import (
	"encoding/json"
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name is required for tool responses to identify the function
	Name string `json:"name,omitempty"`
	// ToolCallID is required for tool responses to reference the original call
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls contains function calls requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Attachments are carried alongside a user message. Encoding them is the
	// caller's job; the runtime only forwards references.
	Attachments []Attachment `json:"attachments,omitempty"`
	// Synthetic marks messages generated by the runtime rather than a model.
	Synthetic bool      `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// Attachment is an already-encoded file reference sent with a user message.
type Attachment struct {
	Type     string `json:"type"` // "image_url" or "file"
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// ToolCall represents a function call request from the model (OpenAI format).
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // Always "function" for now
	Function FunctionCall `json:"function"`
	// Caller is set when a code execution sandbox issued the call.
	Caller Caller `json:"-"`
}

// FunctionCall contains the function name and arguments.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type functionCallWire struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// MarshalJSON sends arguments as a JSON string, as chat APIs expect.
func (f FunctionCall) MarshalJSON() ([]byte, error) {
	args := string(f.Arguments)
	if args == "" {
		args = "{}"
	}
	quoted, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(functionCallWire{Name: f.Name, Arguments: quoted})
}

// UnmarshalJSON accepts arguments either as a JSON string or inline.
func (f *FunctionCall) UnmarshalJSON(data []byte) error {
	var w functionCallWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.Name = w.Name
	f.Arguments = w.Arguments
	var s string
	if len(w.Arguments) > 0 && w.Arguments[0] == '"' {
		if err := json.Unmarshal(w.Arguments, &s); err != nil {
			return err
		}
		f.Arguments = json.RawMessage(s)
	}
	return nil
}

// ToolResponse is what a tool hands back to the dispatcher.
type ToolResponse struct {
	Content string
	Payload ToolPayload
	IsError bool
}

// ChatCompletionRequest represents a request to the chat completions endpoint.
type ChatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []*Message     `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
	Tools       []*ChatTool    `json:"tools,omitempty"`
	ToolChoice  string         `json:"tool_choice,omitempty"` // "auto", "none", or specific tool
	User        string         `json:"user,omitempty"`
	ContainerID string         `json:"container_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ChatTool represents a tool in the format expected by chat completion APIs.
// Deferred tools are advertised by name only.
type ChatTool struct {
	Type         string           `json:"type"` // Always "function" for function tools
	Function     ChatToolFunction `json:"function"`
	DeferLoading bool             `json:"defer_loading,omitempty"`
}

// ChatToolFunction represents the function definition for chat APIs
type ChatToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// StreamChunk is one structured record of the streaming wire variant.
type StreamChunk struct {
	ID          string   `json:"id"`
	Model       string   `json:"model"`
	ContainerID string   `json:"containerId,omitempty"`
	Choices     []Choice `json:"choices"`
	Error       *Error   `json:"error,omitempty"`
	Usage       *Usage   `json:"usage,omitempty"`
}

// Choice represents a single streamed completion choice.
type Choice struct {
	Index        int         `json:"index"`
	Delta        *ChunkDelta `json:"delta,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChunkDelta holds the per-record fields a provider may set at once.
type ChunkDelta struct {
	Role             string            `json:"role,omitempty"`
	Content          string            `json:"content,omitempty"`
	Reasoning        string            `json:"reasoning,omitempty"`
	ReasoningDetails []ReasoningDetail `json:"reasoning_details,omitempty"`
	Images           []ChunkImage      `json:"images,omitempty"`
	ToolUse          *ToolUse          `json:"tool_use,omitempty"`
	ToolCalls        []ToolCallChunk   `json:"tool_calls,omitempty"`
	Citations        []json.RawMessage `json:"citations,omitempty"`
}

// ReasoningDetail is one entry of reasoning_details.
type ReasoningDetail struct {
	Type    string `json:"type"` // reasoning.text or reasoning.summary
	Text    string `json:"text,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// ChunkImage is one generated image reference.
type ChunkImage struct {
	Type     string `json:"type"`
	Partial  bool   `json:"partial,omitempty"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// ToolUse is the wire shape of a tool lifecycle event.
type ToolUse struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Status  ToolStatus      `json:"status"`
	Input   map[string]any  `json:"input,omitempty"`
	Result  *string         `json:"result,omitempty"`
	Caller  Caller          `json:"caller,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ToolCallChunk is a streamed fragment of a function call request.
type ToolCallChunk struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Caller   Caller `json:"caller,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Error represents an API error response.
type Error struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Code    any            `json:"code,omitempty"`
	Param   string         `json:"param,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
