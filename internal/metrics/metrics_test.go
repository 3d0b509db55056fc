package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.AuthEvent("login", "success")
	m.AuthEvent("login", "success")
	m.GuardDecision("forbidden")
	m.Purged(3)
	m.Purged(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("forbidden")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsPurged))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.AuthEvent("login", "failure")
	m.GuardDecision("pass")
	m.Purged(1)
}
