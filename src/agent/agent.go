package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/elee1766/turnkit/src/aisdk"
)

// Agent turns a conversation into streaming provider requests.
type Agent struct {
	Model       aisdk.ModelClient
	Toolbox     *DefaultToolbox
	Logger      *slog.Logger
	Temperature *float64
	MaxTokens   *int
	User        string
}

// BuildRequest assembles the request for the next step of conv. The last
// known container id is sent so code execution state carries over.
func (a *Agent) BuildRequest(conv *aisdk.Conversation) *aisdk.ChatCompletionRequest {
	var chatTools []*aisdk.ChatTool
	if a.Toolbox != nil {
		chatTools = ToChatTools(a.Toolbox.Tools())
	}
	req := &aisdk.ChatCompletionRequest{
		Model:       a.Model.ModelID(),
		Messages:    conv.History(),
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
		Stream:      true,
		Tools:       chatTools,
		User:        a.User,
		ContainerID: conv.Container(),
	}
	if len(chatTools) > 0 {
		req.ToolChoice = "auto"
	}
	return req
}

// OpenStep opens the response stream for the next step of conv.
func (a *Agent) OpenStep(ctx context.Context, conv *aisdk.Conversation) (io.ReadCloser, error) {
	if a.Model == nil {
		return nil, fmt.Errorf("agent has no model")
	}
	req := a.BuildRequest(conv)
	if a.Logger != nil {
		a.Logger.Debug("opening stream", "model", req.Model, "messages", len(req.Messages), "tools", len(req.Tools))
	}
	return a.Model.OpenStream(ctx, req)
}
