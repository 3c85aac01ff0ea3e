package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	m := New()

	m.QueueDepth(1, 4)
	m.TaskDone(1)
	m.TaskDone(1)
	m.Operation("get", ResultNotFound)
	m.ObserveDuration("get", time.Millisecond)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasks.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("get", ResultNotFound)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.QueueDepth(0, 1)
	m.TaskDone(0)
	m.Operation("put", ResultOK)
	m.ObserveDuration("put", time.Second)
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.Operation("put", ResultOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `kv_operations_total{op="put",result="ok"} 1`)
}
