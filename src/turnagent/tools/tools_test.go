package tools

import (
	"testing"

	"github.com/elee1766/turnkit/src/agent"
	"github.com/elee1766/turnkit/src/memory"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ts []agent.Tool) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.GetName())
	}
	return out
}

func TestBuild(t *testing.T) {
	store := memory.NewStore(memory.NewFSBackend(afero.NewMemMapFs(), "/data"), memory.DefaultLimits)

	tests := []struct {
		name         string
		opts         Options
		wantEager    []string
		wantDeferred []string
		wantErr      string
	}{
		{
			name:      "everything",
			opts:      Options{Memory: store},
			wantEager: []string{"calculator", "host_info", "memory", "web_fetch", "web_search"},
		},
		{
			name:      "no store skips memory",
			opts:      Options{},
			wantEager: []string{"calculator", "host_info", "web_fetch", "web_search"},
		},
		{
			name:         "deferred web tools",
			opts:         Options{Memory: store, Enabled: []string{"memory", "web_search", "web_fetch"}, Deferred: []string{"web_search", "web_fetch"}},
			wantEager:    []string{"memory"},
			wantDeferred: []string{"web_fetch", "web_search"},
		},
		{
			name:    "unknown tool",
			opts:    Options{Enabled: []string{"teleport"}},
			wantErr: "tool not found",
		},
		{
			name:    "memory without store",
			opts:    Options{Enabled: []string{"memory"}},
			wantErr: "no memory store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb, err := Build(tt.opts)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEager, names(tb.Eager()))
			if tt.wantDeferred == nil {
				assert.Empty(t, tb.Deferred())
			} else {
				assert.Equal(t, tt.wantDeferred, names(tb.Deferred()))
			}
		})
	}
}

func TestKnown(t *testing.T) {
	infos := Known()
	require.Len(t, infos, 5)
	assert.Equal(t, "calculator", infos[0].Name)
	assert.Equal(t, agent.ProviderWeb, infos[3].Provider)
}
