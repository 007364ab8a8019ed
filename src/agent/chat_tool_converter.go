package agent

import (
	"github.com/elee1766/turnkit/src/aisdk"
)

// ToChatTool converts a Tool to the provider's tool definition. Deferred
// tools carry only their name and description.
func ToChatTool(tool Tool) *aisdk.ChatTool {
	ct := &aisdk.ChatTool{
		Type: tool.GetType(),
		Function: aisdk.ChatToolFunction{
			Name:        tool.GetName(),
			Description: tool.GetDescription(),
		},
	}
	if tool.IsEager() {
		ct.Function.Parameters = tool.GetParameters()
	} else {
		ct.DeferLoading = true
	}
	return ct
}

// ToChatTools converts a slice of Tool interfaces to ChatTools
func ToChatTools(tools []Tool) []*aisdk.ChatTool {
	chatTools := make([]*aisdk.ChatTool, len(tools))
	for i, tool := range tools {
		chatTools[i] = ToChatTool(tool)
	}
	return chatTools
}
