package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetState(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetState("steady")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.State.WithLabelValues("steady")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.State.WithLabelValues("degraded")))

	m.SetState("degraded")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.State.WithLabelValues("steady")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.State.WithLabelValues("degraded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.State.WithLabelValues("initializing")))
}

func TestNewRegistersEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetState("initializing")
	m.Degradations.WithLabelValues("unbounded").Inc()

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	// 8 unlabeled collectors + 3 state series + 1 degradation series
	assert.Equal(t, 12, n)
}
