package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Published("d", "offer")
		m.Dropped("d", "stale")
		m.Retry("d")
		m.Failure("d")
		m.NegotiationError("d")
		m.State("d", "idle", "offer_sent")
		m.StillFrame("d")
		m.RTPPacket("d", "video")
		m.Transport("d", true)
		m.Forget("d")
	})
}

func TestRegisterAndCount(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg), "double registration must fail")

	m.Published("cam1", "offer")
	m.Published("cam1", "offer")
	m.Retry("cam1")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignalingPublished.WithLabelValues("cam1", "offer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("cam1")))
}

func TestStateGaugeMoves(t *testing.T) {
	m := NewMetrics()
	m.State("cam1", "", "idle")
	m.State("cam1", "idle", "streaming")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionState.WithLabelValues("cam1", "idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionState.WithLabelValues("cam1", "streaming")))

	m.Forget("cam1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.SessionState))
}
