package aisdk

// Delta is one typed unit decoded from the transport. Deltas are pure data;
// the set of implementations is closed.
type Delta interface {
	isDelta()
}

// ContentDelta is answer text.
type ContentDelta struct {
	Text string
}

// ReasoningDelta is reasoning text. Providers may resend an overlapping tail.
type ReasoningDelta struct {
	Text string
}

// ImageDelta references a generated image, final or in progress.
type ImageDelta struct {
	URL     string
	Partial bool
}

// CitationDelta carries one citation.
type CitationDelta struct {
	Citation Citation
}

// ToolEventDelta carries a tool lifecycle event.
type ToolEventDelta struct {
	Event ToolEvent
}

// ContainerIDDelta names the execution container used by the provider.
type ContainerIDDelta struct {
	ID string
}

// MetaDelta is side-channel metadata such as response_id or incomplete.
type MetaDelta struct {
	Key   string
	Value string
}

// ToolCallDelta is a fragment of a function call the runtime must execute
// locally. Fragments with the same Index belong to one call.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
	Caller    Caller
}

// Well-known MetaDelta keys.
const (
	MetaResponseID   = "response_id"
	MetaIncomplete   = "incomplete"
	MetaFinishReason = "finish_reason"
	MetaError        = "error"
)

func (ContentDelta) isDelta()     {}
func (ReasoningDelta) isDelta()   {}
func (ImageDelta) isDelta()       {}
func (CitationDelta) isDelta()    {}
func (ToolEventDelta) isDelta()   {}
func (ContainerIDDelta) isDelta() {}
func (MetaDelta) isDelta()        {}
func (ToolCallDelta) isDelta()    {}
