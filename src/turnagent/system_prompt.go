// Package turnagent builds the system prompt and the default toolbox for the
// turn runner.
package turnagent

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/memory"
	"github.com/elee1766/turnkit/src/turn"
	tool_memory "github.com/elee1766/turnkit/src/turnagent/tools/tool_memory"
	"github.com/shirou/gopsutil/v3/host"
	jsonschema "github.com/swaggest/jsonschema-go"
)

// Static prompt templates
const (
	mainPromptTemplate = `You are a helpful assistant answering in a streaming chat. Use the instructions below and the tools available to you to assist the user.

IMPORTANT: You must NEVER generate or guess URLs. Only cite URLs returned by a tool or provided by the user.`

	toneAndStyleSection = `# Tone and style
Be concise, direct and accurate. Your responses are rendered as Github-flavored markdown.
When an answer relies on a web page or search result, cite it.
If you cannot help with something, say so in one or two sentences and offer an alternative when one exists.`

	toolUsagePolicySection = `# Tool usage policy
- You can call several tools in one response. Independent calls run in parallel.
- Tool results are returned in the order the calls were made.
- A result of the form "<provider> error: <message>" means the tool failed; do not retry the same call unchanged.
- Deferred tools are listed by name only. Their full definition is loaded when you first call them.`

	memoryProtocolSection = `# Memory
You have a memory directory at %s that persists across conversations. ALWAYS view it before starting a task to recall earlier progress.
- Record progress, decisions and facts about the user as you work, since the conversation may be cut off at any time.
- Keep memory organized: update existing files instead of creating near-duplicates, and delete files that are no longer true.
- Never store secrets or credentials in memory.`

	suggestionsProtocolSection = `# Follow-up suggestions
After your answer you may offer up to three short follow-up questions the user might ask next. Put them after a line containing only %s, one per line, each starting with "- ". Do not mention the marker otherwise.`
)

// PromptOptions customizes GenerateSystemPrompt.
type PromptOptions struct {
	// Base replaces the built-in opening section when set.
	Base string
	// Suggestions adds the follow-up suggestions protocol.
	Suggestions bool
	Now         func() time.Time
}

// getEnvironmentInfo generates dynamic environment information
func getEnvironmentInfo(now time.Time) string {
	return fmt.Sprintf(`Here is useful information about the environment you are running in:
<env>
Platform: %s
OS Version: %s
Today's date: %s
</env>`, runtime.GOOS, getOSVersion(), now.Format("2006-01-02"))
}

// getOSVersion returns detailed OS version information
func getOSVersion() string {
	info, err := host.Info()
	if err == nil {
		if info.PlatformVersion != "" {
			return fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
		}
		return info.Platform
	}
	return runtime.GOOS
}

func schemaType(t *jsonschema.Type) string {
	if t == nil {
		return "object"
	}
	if t.SimpleTypes != nil {
		return string(*t.SimpleTypes)
	}
	if len(t.SliceOfSimpleTypeValues) > 0 {
		return string(t.SliceOfSimpleTypeValues[0])
	}
	return "object"
}

func formatEnum(values []interface{}) string {
	enumStrs := make([]string, 0, len(values))
	for _, e := range values {
		enumStrs = append(enumStrs, fmt.Sprintf(`"%v"`, e))
	}
	return fmt.Sprintf("(enum: %s)", strings.Join(enumStrs, " | "))
}

// formatSchemaForPrompt formats a JSON schema for display in the prompt
func formatSchemaForPrompt(schema *jsonschema.Schema, indentLevel int) string {
	if schema == nil {
		return "unknown"
	}

	indent := strings.Repeat("  ", indentLevel)
	parts := []string{}

	if schema.Description != nil && *schema.Description != "" {
		parts = append(parts, fmt.Sprintf("%s# %s", indent, *schema.Description))
	}

	detailParts := []string{}
	if len(schema.Enum) > 0 {
		detailParts = append(detailParts, formatEnum(schema.Enum))
	}
	// Required fields only make sense for objects.
	if schema.Items == nil && len(schema.Properties) > 0 && len(schema.Required) > 0 {
		detailParts = append(detailParts, fmt.Sprintf("(required: %s)", strings.Join(schema.Required, ", ")))
	}

	typeLine := indent + schemaType(schema.Type)
	if len(detailParts) > 0 {
		typeLine += " " + strings.Join(detailParts, " ")
	}
	parts = append(parts, typeLine)

	propNames := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		propNames = append(propNames, name)
	}
	sort.Strings(propNames)

	for _, propName := range propNames {
		propSchema := schema.Properties[propName].TypeObject
		if propSchema == nil {
			continue
		}
		propType := schemaType(propSchema.Type)
		if len(propSchema.Enum) > 0 {
			propType += " " + formatEnum(propSchema.Enum)
		}
		line := fmt.Sprintf("%s  %s: %s", indent, propName, propType)
		if propSchema.Description != nil && *propSchema.Description != "" {
			line += fmt.Sprintf(" # %s", *propSchema.Description)
		}
		parts = append(parts, line)
	}

	if schema.Items != nil && schema.Items.SchemaOrBool != nil && schema.Items.SchemaOrBool.TypeObject != nil {
		itemSchemaString := formatSchemaForPrompt(schema.Items.SchemaOrBool.TypeObject, indentLevel+1)
		parts = append(parts, fmt.Sprintf("%s  items: %s", indent, strings.TrimSpace(itemSchemaString)))
	}

	return strings.Join(parts, "\n")
}

// formatToolsForPrompt lists eager tools with their schema and deferred tools
// by name.
func formatToolsForPrompt(toolbox *agent.DefaultToolbox) string {
	if toolbox == nil || len(toolbox.Tools()) == 0 {
		return "No tools available."
	}

	toolStrings := []string{}
	for _, tool := range toolbox.Eager() {
		parts := []string{
			fmt.Sprintf("Tool: %s", tool.GetName()),
			fmt.Sprintf("Description: %s", tool.GetDescription()),
			"Input Schema:",
		}
		if tool.GetParameters() != nil {
			parts = append(parts, formatSchemaForPrompt(tool.GetParameters(), 1))
		} else {
			parts = append(parts, "  # No schema defined")
		}
		toolStrings = append(toolStrings, strings.Join(parts, "\n"))
	}

	var out []string
	if len(toolStrings) > 0 {
		out = append(out, "You have access to the following tools:\n\n"+strings.Join(toolStrings, "\n\n---\n\n"))
	}
	if deferred := toolbox.Deferred(); len(deferred) > 0 {
		names := make([]string, 0, len(deferred))
		for _, tool := range deferred {
			names = append(names, tool.GetName())
		}
		out = append(out, "Deferred tools (loaded on first use): "+strings.Join(names, ", "))
	}
	return strings.Join(out, "\n\n")
}

// GenerateSystemPrompt assembles all sections into the final system prompt
func GenerateSystemPrompt(toolbox *agent.DefaultToolbox, opts PromptOptions) string {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	base := mainPromptTemplate
	if opts.Base != "" {
		base = opts.Base
	}

	sections := []string{base, toneAndStyleSection, toolUsagePolicySection}
	if toolbox != nil && toolbox.HasTool(tool_memory.Name) {
		sections = append(sections, fmt.Sprintf(memoryProtocolSection, memory.Root))
	}
	if opts.Suggestions {
		sections = append(sections, fmt.Sprintf(suggestionsProtocolSection, turn.SuggestionsMarker))
	}
	sections = append(sections, getEnvironmentInfo(now()), formatToolsForPrompt(toolbox))
	return strings.Join(sections, "\n\n")
}
