// Package tools assembles the built-in and web tools into a toolbox.
package tools

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/memory"
	tool_calculator "github.com/elee1766/turnkit/src/turnagent/tools/tool_calculator"
	tool_hostinfo "github.com/elee1766/turnkit/src/turnagent/tools/tool_hostinfo"
	tool_memory "github.com/elee1766/turnkit/src/turnagent/tools/tool_memory"
	tool_webfetch "github.com/elee1766/turnkit/src/turnagent/tools/tool_webfetch"
	tool_websearch "github.com/elee1766/turnkit/src/turnagent/tools/tool_websearch"
)

// Tool name constants - re-exported from individual packages
const (
	CalculatorName = tool_calculator.Name
	HostInfoName   = tool_hostinfo.Name
	MemoryName     = tool_memory.Name
	WebFetchName   = tool_webfetch.Name
	WebSearchName  = tool_websearch.Name
)

// Info describes a known tool for listings.
type Info struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Provider string `json:"provider"`
}

var known = map[string]Info{
	CalculatorName: {Name: CalculatorName, Category: "builtin", Provider: agent.ProviderBuiltin},
	HostInfoName:   {Name: HostInfoName, Category: "system", Provider: agent.ProviderBuiltin},
	MemoryName:     {Name: MemoryName, Category: "memory", Provider: agent.ProviderBuiltin},
	WebFetchName:   {Name: WebFetchName, Category: "network", Provider: agent.ProviderWeb},
	WebSearchName:  {Name: WebSearchName, Category: "network", Provider: agent.ProviderWeb},
}

// Known returns every tool this package can build, sorted by name.
func Known() []Info {
	out := make([]Info, 0, len(known))
	for _, info := range known {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Options selects and configures the tools to register.
type Options struct {
	// Enabled lists tool names to register. Empty registers every tool
	// whose dependencies are present.
	Enabled []string
	// Deferred lists tools advertised without their schema.
	Deferred []string
	Memory   *memory.Store
	Search   tool_websearch.Config
	Logger   *slog.Logger
}

// Build creates a toolbox holding the selected tools.
func Build(opts Options) (*agent.DefaultToolbox, error) {
	for _, name := range append(slices.Clone(opts.Enabled), opts.Deferred...) {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%w: %s", agent.ErrToolNotFound, name)
		}
	}

	want := func(name string) bool {
		return len(opts.Enabled) == 0 || slices.Contains(opts.Enabled, name)
	}
	toolOpts := func(name string) []agent.ToolOption {
		if slices.Contains(opts.Deferred, name) {
			return []agent.ToolOption{agent.Deferred()}
		}
		return nil
	}

	toolbox := agent.NewToolbox[agent.Tool]()
	register := func(tool agent.Tool, err error) error {
		if err != nil {
			return err
		}
		return toolbox.RegisterTool(tool)
	}

	if want(CalculatorName) {
		if err := register(tool_calculator.Tool(toolOpts(CalculatorName)...)); err != nil {
			return nil, err
		}
	}
	if want(HostInfoName) {
		if err := register(tool_hostinfo.Tool(toolOpts(HostInfoName)...), nil); err != nil {
			return nil, err
		}
	}
	if want(MemoryName) {
		switch {
		case opts.Memory != nil:
			if err := register(tool_memory.Tool(opts.Memory, toolOpts(MemoryName)...)); err != nil {
				return nil, err
			}
		case len(opts.Enabled) > 0:
			return nil, fmt.Errorf("tool %s is enabled but no memory store is configured", MemoryName)
		}
	}
	if want(WebFetchName) {
		if err := register(tool_webfetch.Tool(toolOpts(WebFetchName)...)); err != nil {
			return nil, err
		}
	}
	if want(WebSearchName) {
		if err := register(tool_websearch.Tool(opts.Search, toolOpts(WebSearchName)...)); err != nil {
			return nil, err
		}
	}

	if opts.Logger != nil {
		toolbox.RegisterMiddleware(agent.LoggingMiddleware(opts.Logger))
	}
	return toolbox, nil
}
