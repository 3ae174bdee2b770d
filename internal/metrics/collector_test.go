package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("chatflow", reg)

	c.ObserveTurn(ResultCompleted, 120*time.Millisecond)
	c.ObserveTurn(ResultCompleted, 80*time.Millisecond)
	c.ObserveTurn(ResultFailed, 5*time.Millisecond)
	c.IncDelta()
	c.IncDelta()
	c.IncInterrupt("tool_review")
	c.IncCancellation()

	assert.Equal(t, float64(2), testutil.ToFloat64(c.turnsTotal.WithLabelValues(ResultCompleted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.turnsTotal.WithLabelValues(ResultFailed)))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.deltasTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.interruptsTotal.WithLabelValues("tool_review")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cancelsTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveTurn(ResultCanceled, time.Second)
		c.IncDelta()
		c.IncInterrupt("human")
		c.IncCancellation()
	})
}
