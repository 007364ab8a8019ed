package tool_hostinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/elee1766/turnkit/src/schema"
	"github.com/elee1766/turnkit/src/turnagent/toolsutil"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	jsonschema "github.com/swaggest/jsonschema-go"
)

// Tool name constant
const Name = "host_info"

const hostInfoPrompt = `Reports facts about the machine the assistant runs on: operating system, uptime, CPU count, memory and load.

Use it when the user asks about the current system or when an answer depends on local resources.`

// HostInfo is the tool result.
type HostInfo struct {
	Hostname        string    `json:"hostname"`
	OS              string    `json:"os"`
	Platform        string    `json:"platform,omitempty"`
	PlatformVersion string    `json:"platform_version,omitempty"`
	KernelVersion   string    `json:"kernel_version,omitempty"`
	Arch            string    `json:"arch"`
	Uptime          string    `json:"uptime,omitempty"`
	CPUs            int       `json:"cpus,omitempty"`
	MemoryTotal     string    `json:"memory_total,omitempty"`
	MemoryUsed      string    `json:"memory_used,omitempty"`
	MemoryUsedPct   float64   `json:"memory_used_percent,omitempty"`
	Load            []float64 `json:"load,omitempty"`
	Time            string    `json:"time"`
}

// Optional sections of the report.
const (
	SectionCPU    = "cpu"
	SectionMemory = "memory"
	SectionLoad   = "load"
)

var parameters = schema.Object(map[string]*jsonschema.Schema{
	"sections": schema.Array("Optional sections to include. All are included when omitted.",
		schema.Enum("", SectionCPU, SectionMemory, SectionLoad)),
})

type input struct {
	Sections []string `json:"sections"`
}

// collector gathers host facts. Tests replace it.
var collector = collect

// Tool returns the host_info tool.
func Tool(opts ...agent.ToolOption) agent.Tool {
	return agent.NewFuncTool(Name, hostInfoPrompt, parameters, execute, opts...)
}

func execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	if err := toolsutil.CheckContext(ctx); err != nil {
		return nil, err
	}
	var in input
	if args := call.Function.Arguments; len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", toolsutil.ErrInvalidParams, err)
		}
	}
	info, err := collector(ctx)
	if err != nil {
		return nil, err
	}
	info.only(in.Sections)
	content, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &aisdk.ToolResponse{Content: string(content)}, nil
}

// only clears the optional sections not named. Empty keeps everything.
func (h *HostInfo) only(sections []string) {
	if len(sections) == 0 {
		return
	}
	if !slices.Contains(sections, SectionCPU) {
		h.CPUs = 0
	}
	if !slices.Contains(sections, SectionMemory) {
		h.MemoryTotal, h.MemoryUsed, h.MemoryUsedPct = "", "", 0
	}
	if !slices.Contains(sections, SectionLoad) {
		h.Load = nil
	}
}

// collect queries gopsutil. Only the host query is required; the others are
// omitted on platforms that do not support them.
func collect(ctx context.Context) (*HostInfo, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read host info: %w", err)
	}
	info := &HostInfo{
		Hostname:        h.Hostname,
		OS:              h.OS,
		Platform:        h.Platform,
		PlatformVersion: h.PlatformVersion,
		KernelVersion:   h.KernelVersion,
		Arch:            runtime.GOARCH,
		Uptime:          (time.Duration(h.Uptime) * time.Second).String(),
		CPUs:            runtime.NumCPU(),
		Time:            time.Now().Format(time.RFC3339),
	}

	log := toolsutil.GetLogger()
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.CPUs = n
	} else if err != nil {
		log.Debug("cpu count unavailable", "error", err)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = toolsutil.FormatBytes(int64(vm.Total))
		info.MemoryUsed = toolsutil.FormatBytes(int64(vm.Used))
		info.MemoryUsedPct = vm.UsedPercent
	} else {
		log.Debug("memory stats unavailable", "error", err)
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load = []float64{avg.Load1, avg.Load5, avg.Load15}
	} else {
		log.Debug("load average unavailable", "error", err)
	}
	return info, nil
}
