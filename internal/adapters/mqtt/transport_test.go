package mqtt

import (
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/CamView/internal/config"
	"github.com/dkeye/CamView/internal/core"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		BrokerURL:          "wss://broker.example:8084/mqtt",
		Username:           "client",
		Password:           "client",
		KeepAlive:          600 * time.Second,
		ConnectTimeout:     4 * time.Second,
		ReconnectPeriod:    4 * time.Second,
		InsecureSkipVerify: true,
	}
}

func TestClientID(t *testing.T) {
	id := clientID("cam-1")
	assert.Regexp(t, regexp.MustCompile(`^client_cam-1-[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, clientID("cam-1"))
}

func TestBuildOptions(t *testing.T) {
	tr := &Transport{device: "cam-1"}
	opts := tr.buildOptions(testConfig())

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker.example:8084", opts.Servers[0].Host)
	assert.Equal(t, "client", opts.Username)
	assert.Equal(t, int64(600), opts.KeepAlive)
	assert.Equal(t, 4*time.Second, opts.ConnectTimeout)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.Equal(t, 4*time.Second, opts.ConnectRetryInterval)
	assert.Equal(t, 4*time.Second, opts.MaxReconnectInterval)

	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "webrtc/cam-1/status", opts.WillTopic)
	assert.Equal(t, []byte("Connection Lost"), opts.WillPayload)
	assert.Equal(t, core.QoSAtMostOnce, opts.WillQos)
	assert.False(t, opts.WillRetained)

	require.NotNil(t, opts.TLSConfig)
	assert.True(t, opts.TLSConfig.InsecureSkipVerify)
}

func TestPublishWhileDisconnected(t *testing.T) {
	tr := NewTransport("cam-1", testConfig())
	assert.Equal(t, core.TransportDisconnected, tr.State())
	assert.ErrorIs(t, tr.Publish("webrtc/cam-1/jsonrpc", core.QoSExactlyOnce, []byte(`{}`)), ErrNotConnected)
	assert.ErrorIs(t, tr.Unsubscribe("webrtc/cam-1/jsonrpc-reply"), ErrNotConnected)
}

func collect(t *testing.T, ch <-chan core.TransportState, n int) []core.TransportState {
	t.Helper()
	var out []core.TransportState
	for len(out) < n {
		select {
		case s := <-ch:
			out = append(out, s)
		case <-time.After(time.Second):
			t.Fatalf("got %v, want %d states", out, n)
		}
	}
	return out
}

func TestStateChangesNotifyOnceInOrder(t *testing.T) {
	tr := NewTransport("cam-1", testConfig())
	seen := make(chan core.TransportState, 8)
	tr.OnStateChange(func(s core.TransportState) { seen <- s })

	tr.setState(core.TransportConnecting)
	tr.setState(core.TransportConnecting)
	tr.setState(core.TransportConnected)
	tr.setState(core.TransportError)
	tr.setState(core.TransportConnecting)

	assert.Equal(t, []core.TransportState{
		core.TransportConnecting,
		core.TransportConnected,
		core.TransportError,
		core.TransportConnecting,
	}, collect(t, seen, 4))
	assert.Equal(t, core.TransportConnecting, tr.State())
}

func TestStateHandlersNeverOverlap(t *testing.T) {
	tr := NewTransport("cam-1", testConfig())
	var inflight, overlaps, calls atomic.Int32
	tr.OnStateChange(func(core.TransportState) {
		if inflight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		inflight.Add(-1)
		calls.Add(1)
	})

	states := []core.TransportState{core.TransportConnecting, core.TransportConnected, core.TransportError}
	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.setState(states[i%len(states)])
		}()
	}
	wg.Wait()
	tr.Disconnect()

	require.Eventually(t, func() bool { return inflight.Load() == 0 && calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, overlaps.Load())
}

func TestDisconnectDeliversFinalStateThenStops(t *testing.T) {
	tr := NewTransport("cam-1", testConfig())
	seen := make(chan core.TransportState, 8)
	tr.OnStateChange(func(s core.TransportState) { seen <- s })

	tr.setState(core.TransportConnected)
	tr.Disconnect()
	assert.Equal(t, []core.TransportState{core.TransportConnected, core.TransportDisconnected}, collect(t, seen, 2))

	tr.setState(core.TransportConnecting)
	select {
	case s := <-seen:
		t.Fatalf("state %s delivered after disconnect", s)
	case <-time.After(50 * time.Millisecond):
	}
	tr.Disconnect()
}
