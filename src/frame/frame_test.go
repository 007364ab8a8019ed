package frame

import (
	"strings"
	"testing"

	"github.com/elee1766/turnkit/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tagStream = `Intro é <thinking:step one>` +
	`<citation:{"type":"web_search_result_location","url":"https://a.example","title":"A > B"}>` +
	` text a < b <image:https://img.example/1.png><response_id:resp_1><bogus:x> tail 日本` +
	`<incomplete:max_tokens>`

const recordStream = ": keepalive\n" +
	`data: {"containerId":"cntr_1","choices":[{"delta":{"reasoning":"think","content":"Hi ","images":[{"type":"image_url","image_url":{"url":"https://img.example/a.png"}}],"citations":[{"url":"https://w.example"}]}}]}` + "\n" +
	"event: message\r\n" +
	`data: {"choices":[{"delta":{"reasoning_details":[{"type":"reasoning.text","text":"more"},{"type":"reasoning.summary","summary":"sum"}],"content":"thére"}}]}` + "\r\n" +
	"data: not json\n" +
	`data: {"choices":[{"delta":{"tool_use":{"name":"web_search","status":"start","input":{"query":"go"},"caller":{"type":"programmatic","tool_id":"srvtoolu_1"}}}}]}` + "\n" +
	`data:{"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n" +
	"data: [DONE]\n"

func newReader(t *testing.T, format Format) Reader {
	t.Helper()
	r, err := New(Config{Format: format})
	require.NoError(t, err)
	return r
}

// feedAll feeds chunks in order and flushes.
func feedAll(r Reader, chunks ...string) []aisdk.Delta {
	var out []aisdk.Delta
	for _, c := range chunks {
		out = append(out, r.Feed([]byte(c))...)
	}
	return append(out, r.Flush()...)
}

// merged joins adjacent content deltas; how text is split across content
// deltas depends on chunking and is not significant.
func merged(in []aisdk.Delta) []aisdk.Delta {
	var out []aisdk.Delta
	for _, d := range in {
		if c, ok := d.(aisdk.ContentDelta); ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(aisdk.ContentDelta); ok {
				out[len(out)-1] = aisdk.ContentDelta{Text: prev.Text + c.Text}
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func TestTagReaderSplitOpener(t *testing.T) {
	r := newReader(t, FormatTags)
	deltas := feedAll(r, "Hello <thi", "nking:plan", "> World")

	var content, reasoning strings.Builder
	for _, d := range deltas {
		switch v := d.(type) {
		case aisdk.ContentDelta:
			content.WriteString(v.Text)
		case aisdk.ReasoningDelta:
			reasoning.WriteString(v.Text)
		}
	}
	assert.Equal(t, "Hello  World", content.String())
	assert.Equal(t, "plan", reasoning.String())
}

func TestTagReaderDecodesKnownTags(t *testing.T) {
	r := newReader(t, FormatTags)
	got := merged(feedAll(r, tagStream))

	want := []aisdk.Delta{
		aisdk.ContentDelta{Text: "Intro é "},
		aisdk.ReasoningDelta{Text: "step one"},
		aisdk.CitationDelta{Citation: aisdk.WebCitation{URL: "https://a.example", Title: "A > B"}},
		aisdk.ContentDelta{Text: " text a < b "},
		aisdk.ImageDelta{URL: "https://img.example/1.png"},
		aisdk.MetaDelta{Key: aisdk.MetaResponseID, Value: "resp_1"},
		aisdk.ContentDelta{Text: "<bogus:x> tail 日本"},
		aisdk.MetaDelta{Key: aisdk.MetaIncomplete, Value: "max_tokens"},
	}
	assert.Equal(t, want, got)
}

func TestReadersChunkBoundaryInvariance(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		stream string
	}{
		{name: "tags", format: FormatTags, stream: tagStream},
		{name: "records", format: FormatRecords, stream: recordStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			whole := merged(feedAll(newReader(t, tt.format), tt.stream))
			require.NotEmpty(t, whole)

			for k := 0; k <= len(tt.stream); k++ {
				got := merged(feedAll(newReader(t, tt.format), tt.stream[:k], tt.stream[k:]))
				require.Equal(t, whole, got, "split at byte %d", k)
			}

			r := newReader(t, tt.format)
			var bytewise []aisdk.Delta
			for i := 0; i < len(tt.stream); i++ {
				bytewise = append(bytewise, r.Feed([]byte{tt.stream[i]})...)
			}
			bytewise = append(bytewise, r.Flush()...)
			assert.Equal(t, whole, merged(bytewise))
		})
	}
}

func TestTagReaderDropsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []aisdk.Delta
	}{
		{
			name:   "citation payload is not json",
			chunks: []string{"a<citation:oops>b"},
			want:   []aisdk.Delta{aisdk.ContentDelta{Text: "ab"}},
		},
		{
			name:   "citation without provenance",
			chunks: []string{`a<citation:{"title":"x"}>b`},
			want:   []aisdk.Delta{aisdk.ContentDelta{Text: "ab"}},
		},
		{
			name:   "tool event without status",
			chunks: []string{`<tool_use:{"name":"calc"}>ok`},
			want:   []aisdk.Delta{aisdk.ContentDelta{Text: "ok"}},
		},
		{
			name:   "unterminated tag discarded at end",
			chunks: []string{"done <thinking:never closed"},
			want:   []aisdk.Delta{aisdk.ContentDelta{Text: "done "}},
		},
		{
			name:   "oversized tag dropped through its close",
			chunks: []string{"a<thinking:" + strings.Repeat("x", maxTagLen+10) + ">b"},
			want:   []aisdk.Delta{aisdk.ContentDelta{Text: "ab"}},
		},
		{
			name:   "oversized tag split across chunks",
			chunks: []string{"a<thinking:", strings.Repeat("x", maxTagLen), strings.Repeat("y", 100), "yy>b"},
			want:   []aisdk.Delta{aisdk.ContentDelta{Text: "ab"}},
		},
		{
			name:   "oversized json tag ignores '>' in strings",
			chunks: []string{`a<tool_use:{"x":"`, strings.Repeat("z", maxTagLen), `>"}`, ">b"},
			want:   []aisdk.Delta{aisdk.ContentDelta{Text: "ab"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merged(feedAll(newReader(t, FormatTags), tt.chunks...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTagReaderFlushKeepsPartialOpener(t *testing.T) {
	for _, tail := range []string{"x <", "a <thi", "done <ima"} {
		got := merged(feedAll(newReader(t, FormatTags), tail))
		assert.Equal(t, []aisdk.Delta{aisdk.ContentDelta{Text: tail}}, got, tail)
	}
}

func TestTagReaderLargeImage(t *testing.T) {
	url := "data:image/png;base64," + strings.Repeat("DQUJ", 25<<10)
	stream := "Here: <image:" + url + "> done"

	whole := merged(feedAll(newReader(t, FormatTags), stream))
	want := []aisdk.Delta{
		aisdk.ContentDelta{Text: "Here: "},
		aisdk.ImageDelta{URL: url},
		aisdk.ContentDelta{Text: " done"},
	}
	assert.Equal(t, want, whole)

	var chunks []string
	for i := 0; i < len(stream); i += 4096 {
		chunks = append(chunks, stream[i:min(i+4096, len(stream))])
	}
	assert.Equal(t, want, merged(feedAll(newReader(t, FormatTags), chunks...)))
}

func TestTagReaderHoldsSplitRune(t *testing.T) {
	r := newReader(t, FormatTags)
	s := "日本"
	first := r.Feed([]byte(s[:2]))
	assert.Empty(t, first)
	second := r.Feed([]byte(s[2:]))
	assert.Equal(t, []aisdk.Delta{aisdk.ContentDelta{Text: s}}, second)
}

func TestTagReaderToolCallIndexes(t *testing.T) {
	r := newReader(t, FormatTags)
	got := feedAll(r,
		`<tool_call:{"id":"call_1","name":"calculator","input":{"expression":"1+1"}}>`,
		`<tool_call:{"id":"call_2","name":"web_fetch","input":{"url":"https://x"},"caller":{"type":"programmatic","tool_id":"srv_1"}}>`,
	)
	require.Len(t, got, 2)
	first := got[0].(aisdk.ToolCallDelta)
	second := got[1].(aisdk.ToolCallDelta)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "calculator", first.Name)
	assert.JSONEq(t, `{"expression":"1+1"}`, first.Arguments)
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, aisdk.Programmatic("srv_1"), second.Caller)
}

func TestRecordReaderExtractsFields(t *testing.T) {
	got := feedAll(newReader(t, FormatRecords), recordStream)

	want := []aisdk.Delta{
		aisdk.ContainerIDDelta{ID: "cntr_1"},
		aisdk.ReasoningDelta{Text: "think"},
		aisdk.ContentDelta{Text: "Hi "},
		aisdk.ImageDelta{URL: "https://img.example/a.png"},
		aisdk.CitationDelta{Citation: aisdk.WebCitation{URL: "https://w.example"}},
		aisdk.ReasoningDelta{Text: "more"},
		aisdk.ReasoningDelta{Text: "sum"},
		aisdk.ContentDelta{Text: "thére"},
		aisdk.ToolEventDelta{Event: aisdk.ToolEvent{
			Name:   "web_search",
			Status: aisdk.ToolStatusStart,
			Input:  map[string]any{"query": "go"},
			Caller: aisdk.Programmatic("srvtoolu_1"),
		}},
		aisdk.MetaDelta{Key: aisdk.MetaFinishReason, Value: "stop"},
	}
	assert.Equal(t, want, got)
}

func TestRecordReaderHoldsPartialLine(t *testing.T) {
	r := newReader(t, FormatRecords)
	line := `data: {"choices":[{"delta":{"content":"a"}}]}`

	assert.Empty(t, r.Feed([]byte(line)))
	assert.Equal(t, []aisdk.Delta{aisdk.ContentDelta{Text: "a"}}, r.Feed([]byte("\n")))

	assert.Empty(t, r.Feed([]byte(line)))
	assert.Empty(t, r.Flush(), "unterminated record must be discarded")
}

func TestRecordReaderToolCallFragments(t *testing.T) {
	r := newReader(t, FormatRecords)
	got := feedAll(r,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_9","function":{"name":"memory","arguments":"{\"command\":"}}]}}]}`+"\n",
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"view\"}"}}]}}]}`+"\n",
	)

	agg := aisdk.NewToolCallAggregator()
	for _, d := range got {
		agg.Add(d.(aisdk.ToolCallDelta))
	}
	calls := agg.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)
	assert.Equal(t, "memory", calls[0].Function.Name)
	assert.JSONEq(t, `{"command":"view"}`, string(calls[0].Function.Arguments))
}

func TestEncoderRoundTrip(t *testing.T) {
	result := "4"
	ev := aisdk.ToolEvent{
		ID:      "call_1",
		Name:    "calculator",
		Status:  aisdk.ToolStatusEnd,
		Input:   map[string]any{"expression": "2 > 1 ? 4 : 0"},
		Result:  &result,
		Caller:  aisdk.Direct(),
		Payload: aisdk.WebFetchPayload{URL: "https://x.example", StatusCode: 200, Bytes: 3},
	}

	for _, format := range []Format{FormatTags, FormatRecords} {
		t.Run(string(format), func(t *testing.T) {
			enc, err := NewEncoder(Config{Format: format})
			require.NoError(t, err)
			raw, err := enc.EncodeToolEvent(ev)
			require.NoError(t, err)

			got := feedAll(newReader(t, format), string(raw))
			require.Len(t, got, 1)
			assert.Equal(t, aisdk.ToolEventDelta{Event: ev}, got[0])
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = NewEncoder(Config{Format: ""})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
