package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/app/console"
	"github.com/dkeye/CamView/internal/domain"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents streams snapshots of one camera over a websocket until the
// viewer goes away or the camera is removed.
func (h *handlers) handleEvents(c *gin.Context) {
	id := domain.DeviceID(c.Param("id"))
	sub, err := h.console.Subscribe(id)
	if err != nil {
		h.fail(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.console.Unsubscribe(sub)
		log.Error().Err(err).Str("module", "http").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "http").Str("device", string(id)).Str("client", c.GetString("client_token")).Msg("events subscriber")

	done := make(chan struct{})
	go h.readPump(ws, done)
	h.writePump(ws, sub, done)
	h.console.Unsubscribe(sub)
	_ = ws.Close()
}

// readPump only watches for the close frame; viewers send nothing.
func (h *handlers) readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(h.readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(h.pongWait()))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait()))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *handlers) writePump(ws *websocket.Conn, sub *console.Subscriber, done <-chan struct{}) {
	ping := time.NewTicker(h.pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			log.Debug().Str("module", "http").Msg("writePump viewer gone")
			return
		case snap, ok := <-sub.C():
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "camera removed"),
					time.Now().Add(writeWait))
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				log.Error().Err(err).Str("module", "http").Msg("writePump marshal")
				return
			}
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "http").Msg("writePump set deadline")
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "http").Msg("writePump write error")
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *handlers) pongWait() time.Duration { return h.pingPeriod * 10 / 9 }
