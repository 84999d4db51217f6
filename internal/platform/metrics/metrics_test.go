package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncTransitions("MEMBERSHIP", "confirm_print", 5)
	m.IncBatchRun("confirm_print", "applied")
	m.AddBatchAffected("confirm_print", 5)
	m.IncNotification("ready", "failed")
	m.ObserveCrop(20 * time.Millisecond)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Transitions.WithLabelValues("MEMBERSHIP", "confirm_print")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRuns.WithLabelValues("confirm_print", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("ready", "failed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.IncTransitions("PARKING", "reprint", 1)
	m.IncBatchRun("reprint", "noop")
	m.AddBatchAffected("reprint", 1)
	m.IncNotification("ready", "sent")
	m.ObserveCrop(time.Second)
}
