package turnagent

import (
	"github.com/elee1766/turnkit/src/agent"
)

// GetDefaultSystemPrompt returns the rendered system prompt with default values
func GetDefaultSystemPrompt(toolbox *agent.DefaultToolbox) string {
	return GenerateSystemPrompt(toolbox, PromptOptions{Suggestions: true})
}
