package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTool(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordTool("calculator", "ok", 10*time.Millisecond)
	m.RecordTool("calculator", "ok", 20*time.Millisecond)
	m.RecordTool("web_fetch", "error", time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(m.ToolCalls))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ToolCalls.WithLabelValues("calculator", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ToolCalls.WithLabelValues("web_fetch", "error")))
}

func TestRecordMemoryOp(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordMemoryOp("create", "quota_exceeded")

	expected := `
		# HELP turnkit_memory_operations_total Memory store operations by command and outcome
		# TYPE turnkit_memory_operations_total counter
		turnkit_memory_operations_total{command="create",outcome="quota_exceeded"} 1
	`
	require.NoError(t, testutil.CollectAndCompare(m.MemoryOps, strings.NewReader(expected)))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTool("x", "ok", time.Second)
		m.RecordMemoryOp("view", "ok")
		m.RecordTurn("complete")
		m.RecordDelta("content")
	})
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordTurn("complete")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `turnkit_turns_total{status="complete"} 1`)
}
