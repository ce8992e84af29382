package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/torghul/redlock-leader/types"
)

func TestNewPrometheus_Defaults(t *testing.T) {
	p := NewPrometheus(nil, "")

	require.Equal(t, prometheus.DefaultRegisterer, p.reg)
	require.Equal(t, DefaultNamespace, p.namespace)
}

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "test")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}

func TestPrometheusCollector_LeadershipChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordLeadershipChange(true)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.isLeader), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.transitions.WithLabelValues("leader")), 0)

	p.RecordLeadershipChange(false)
	require.InDelta(t, 0.0, testutil.ToFloat64(p.isLeader), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.transitions.WithLabelValues("not_leader")), 0)
}

func TestPrometheusCollector_ClientErrorsAndDrops(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordClientError()
	p.RecordClientError()
	p.RecordEventDropped(types.EventExtended)

	require.InDelta(t, 2.0, testutil.ToFloat64(p.clientErrors), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.eventsDropped.WithLabelValues("extended")), 0)
}

func TestPrometheusCollector_LockOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordLockOperation("acquire", true, 0.002)
	p.RecordLockOperation("acquire", false, 0.004)
	p.RecordLockOperation("extend", true, 0.001)

	require.InDelta(t, 1.0, testutil.ToFloat64(p.lockOps.WithLabelValues("acquire", "success")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.lockOps.WithLabelValues("acquire", "failure")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.lockOps.WithLabelValues("extend", "success")), 0)
	require.Equal(t, 2, testutil.CollectAndCount(p.lockOpDuration))
}

func TestPrometheusCollector_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	require.NotPanics(t, func() {
		p.RecordClientError()
		p.RecordLeadershipChange(true)
		p.RecordLockOperation("release", true, 0)
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
