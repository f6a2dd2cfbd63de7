package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/CamView/internal/adapters/http/mocks"
	"github.com/dkeye/CamView/internal/app/console"
	"github.com/dkeye/CamView/internal/app/session"
	"github.com/dkeye/CamView/internal/config"
	"github.com/dkeye/CamView/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

func testConfig() *config.Config {
	return &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		ReadLimit:  1024,
		PingPeriod: time.Second,
		Intents:    config.IntentsConfig{Limit: 2, Interval: time.Minute},
	}
}

func snap(id string, state session.State) session.Snapshot {
	return session.Snapshot{DeviceID: domain.DeviceID(id), CameraName: id, State: state, MaxRetries: session.MaxRetries}
}

func newRouter(t *testing.T) (*gin.Engine, *mocks.MockConsole) {
	ctrl := gomock.NewController(t)
	con := mocks.NewMockConsole(ctrl)
	return SetupRouter(testConfig(), con, nil), con
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newRouter(t)
	w := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestListCameras(t *testing.T) {
	r, con := newRouter(t)
	con.EXPECT().List().Return([]session.Snapshot{snap("a", session.StateIdle), snap("b", session.StateStreaming)})

	w := do(r, http.MethodGet, "/api/cameras", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cameras []map[string]any `json:"cameras"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Cameras, 2)
	assert.Equal(t, "a", body.Cameras[0]["deviceId"])
	assert.Equal(t, "streaming", body.Cameras[1]["state"])
}

func TestGetUnknownCamera(t *testing.T) {
	r, con := newRouter(t)
	con.EXPECT().Get(domain.DeviceID("nope")).Return(session.Snapshot{}, fmt.Errorf("%w: nope", console.ErrUnknownCamera))

	w := do(r, http.MethodGet, "/api/cameras/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartReturnsSnapshot(t *testing.T) {
	r, con := newRouter(t)
	gomock.InOrder(
		con.EXPECT().Start(domain.DeviceID("a")).Return(nil),
		con.EXPECT().Get(domain.DeviceID("a")).Return(snap("a", session.StateOfferSent), nil),
	)

	w := do(r, http.MethodPost, "/api/cameras/a/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"offer_sent"`)
}

func TestIntentsAreRateLimitedPerCameraAndIntent(t *testing.T) {
	r, con := newRouter(t)
	con.EXPECT().Stop(domain.DeviceID("a")).Return(nil).Times(2)
	con.EXPECT().Get(domain.DeviceID("a")).Return(snap("a", session.StateClosed), nil).Times(2)
	con.EXPECT().Stop(domain.DeviceID("b")).Return(nil)
	con.EXPECT().Get(domain.DeviceID("b")).Return(snap("b", session.StateIdle), nil)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/cameras/a/stop", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/cameras/a/stop", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/cameras/a/stop", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/cameras/b/stop", "").Code)

	con.EXPECT().Start(domain.DeviceID("a")).Return(nil)
	con.EXPECT().Get(domain.DeviceID("a")).Return(snap("a", session.StateOfferSent), nil)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/cameras/a/start", "").Code, "stops do not use up starts")
}

func TestIntentErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown", console.ErrUnknownCamera, http.StatusNotFound},
		{"closed", session.ErrClosed, http.StatusConflict},
		{"transport", fmt.Errorf("%w: publish: broken pipe", session.ErrTransport), http.StatusServiceUnavailable},
		{"negotiation", fmt.Errorf("%w: no media", session.ErrNegotiation), http.StatusBadGateway},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, con := newRouter(t)
			con.EXPECT().Start(domain.DeviceID("a")).Return(tc.err)

			w := do(r, http.MethodPost, "/api/cameras/a/start", "")
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestSetMode(t *testing.T) {
	t.Run("playback", func(t *testing.T) {
		r, con := newRouter(t)
		con.EXPECT().RequestPlayback(domain.DeviceID("a"), "2024-03-09", "7:05").Return(nil)
		con.EXPECT().Get(domain.DeviceID("a")).Return(snap("a", session.StateStreaming), nil)

		w := do(r, http.MethodPost, "/api/cameras/a/mode", `{"mode":"playback","date":"2024-03-09","time":"7:05"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("live", func(t *testing.T) {
		r, con := newRouter(t)
		con.EXPECT().RequestLive(domain.DeviceID("a")).Return(nil)
		con.EXPECT().Get(domain.DeviceID("a")).Return(snap("a", session.StateStreaming), nil)

		w := do(r, http.MethodPost, "/api/cameras/a/mode", `{"mode":"live"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejected playback", func(t *testing.T) {
		r, con := newRouter(t)
		con.EXPECT().RequestPlayback(domain.DeviceID("a"), "", "7:05").
			Return(fmt.Errorf("%w: %w", session.ErrInvalidPlayback, domain.ErrDateRequired))

		w := do(r, http.MethodPost, "/api/cameras/a/mode", `{"mode":"playback","time":"7:05"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown mode", func(t *testing.T) {
		r, _ := newRouter(t)
		w := do(r, http.MethodPost, "/api/cameras/a/mode", `{"mode":"rewind"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		r, _ := newRouter(t)
		w := do(r, http.MethodPost, "/api/cameras/a/mode", `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFrame(t *testing.T) {
	r, con := newRouter(t)
	jpeg := []byte{0xff, 0xd8, 0xff, 0xd9}
	con.EXPECT().Frame(domain.DeviceID("a")).Return(jpeg, true, nil)
	con.EXPECT().Frame(domain.DeviceID("b")).Return(nil, false, nil)

	w := do(r, http.MethodGet, "/api/cameras/a/frame", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "live", w.Header().Get("X-Frame-Source"))
	assert.Equal(t, jpeg, w.Body.Bytes())

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/api/cameras/b/frame", "").Code)
}

func TestRefresh(t *testing.T) {
	r, con := newRouter(t)
	con.EXPECT().Refresh(gomock.Any()).Return(nil)
	con.EXPECT().List().Return([]session.Snapshot{snap("a", session.StateIdle)})
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/cameras/refresh", "").Code)

	con.EXPECT().Refresh(gomock.Any()).Return(fmt.Errorf("directory down"))
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodPost, "/api/cameras/refresh", "").Code)
}

func TestSelectedCameraIsKeptInSession(t *testing.T) {
	r, con := newRouter(t)
	con.EXPECT().Get(domain.DeviceID("garage")).Return(snap("garage", session.StateIdle), nil).Times(2)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/selected", "").Code)

	w := do(r, http.MethodPost, "/api/selected/garage", "")
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/selected", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deviceId":"garage"`)
}

func TestClientTokenCookie(t *testing.T) {
	r, _ := newRouter(t)
	w := do(r, http.MethodGet, "/healthz", "")
	var token string
	for _, c := range w.Result().Cookies() {
		if c.Name == "ct" {
			token = c.Value
		}
	}
	assert.Len(t, token, 36)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "camview_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	ctrl := gomock.NewController(t)
	r := SetupRouter(testConfig(), mocks.NewMockConsole(ctrl), reg)
	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "camview_test_total 1")
}

func TestEventsStreamSnapshots(t *testing.T) {
	r, con := newRouter(t)
	hub := console.NewHub()
	sub := hub.Subscribe("a")
	require.NoError(t, sub.TrySend(snap("a", session.StateIdle)))

	con.EXPECT().Subscribe(domain.DeviceID("a")).Return(sub, nil)
	unsubscribed := make(chan struct{})
	con.EXPECT().Unsubscribe(sub).Do(func(*console.Subscriber) { close(unsubscribed) })

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/cameras/a/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var got map[string]any
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "a", got["deviceId"])
	assert.Equal(t, "idle", got["state"])

	hub.OnSnapshot(snap("a", session.StateOfferSent))
	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"offer_sent"`)

	hub.CloseDevice("a")
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	select {
	case <-unsubscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never released")
	}
}

func TestEventsUnknownCamera(t *testing.T) {
	r, con := newRouter(t)
	con.EXPECT().Subscribe(domain.DeviceID("x")).Return(nil, console.ErrUnknownCamera)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/cameras/x/events", "").Code)
}
