package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/errors"
)

func TestNewRegistry_CoreMetricsRegistered(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.Core())

	r.Core().WaitCycles.WithLabelValues("ready").Inc()
	r.Core().GoalsActive.Set(3)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rclgo_waitset_cycles_total"])
	assert.True(t, names["rclgo_action_goals_active"])
	assert.True(t, names["go_goroutines"], "runtime collectors included")
}

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	r := NewRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rclgo_test_custom_total",
		Help: "test counter",
	})
	require.NoError(t, r.Register("node", "custom", c))

	err := r.Register("node", "custom", c)
	assert.True(t, errors.IsValidationError(err), "duplicate key rejected")

	assert.True(t, r.Unregister("node", "custom"))
	assert.False(t, r.Unregister("node", "custom"))
}

func TestRegistry_PrometheusConflict(t *testing.T) {
	r := NewRegistry()

	a := prometheus.NewCounter(prometheus.CounterOpts{Name: "rclgo_test_dup_total", Help: "a"})
	b := prometheus.NewCounter(prometheus.CounterOpts{Name: "rclgo_test_dup_total", Help: "a"})

	require.NoError(t, r.Register("one", "dup", a))
	err := r.Register("two", "dup", b)
	assert.True(t, errors.IsValidationError(err))
}
