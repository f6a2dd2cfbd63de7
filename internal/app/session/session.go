package session

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/dkeye/CamView/internal/core"
	"github.com/dkeye/CamView/internal/domain"
)

const (
	MaxRetries = 3
	RetryDelay = 5000 * time.Millisecond

	maxCorrelationID = 1000
)

// Session is the per-device state owned by one Controller. Correlation ids are
// fixed for its lifetime; only a new Session gets new ones.
type Session struct {
	Camera   domain.Camera
	OfferID  int
	AnswerID int
	CloseID  int

	mode       domain.ModeRequest
	state      State
	status     string
	retryCount int
	loading    bool
	display    Display
	transport  core.TransportState

	// restoreStatus is the status hidden by a broker-caused error; empty
	// when the current status was set by the state machine.
	restoreStatus string

	active *attempt
	retry  *retryTimer
}

// attempt is one PeerConnectionHandle. A new attempt is made on every start
// and every retry; callbacks carry the attempt they were bound to.
type attempt struct {
	conn     core.MediaConnection
	ctx      context.Context
	cancel   context.CancelFunc
	answered bool
}

func newSession(cam domain.Camera) *Session {
	offer, answer, closeID := correlationIDs()
	return &Session{
		Camera:    cam,
		OfferID:   offer,
		AnswerID:  answer,
		CloseID:   closeID,
		mode:      domain.LiveRequest(),
		state:     StateIdle,
		status:    StatusWaiting,
		transport: core.TransportDisconnected,
	}
}

// correlationIDs draws three pairwise distinct ids in [1, maxCorrelationID].
func correlationIDs() (int, int, int) {
	draw := func() int { return rand.IntN(maxCorrelationID) + 1 }
	offer := draw()
	answer := draw()
	for answer == offer {
		answer = draw()
	}
	closeID := draw()
	for closeID == offer || closeID == answer {
		closeID = draw()
	}
	return offer, answer, closeID
}

func (s *Session) snapshot(seq uint64) Snapshot {
	return Snapshot{
		Seq:        seq,
		DeviceID:   s.Camera.DeviceID,
		CameraName: s.Camera.Name,
		State:      s.state,
		Status:     s.status,
		Mode:       s.mode,
		RetryCount: s.retryCount,
		MaxRetries: MaxRetries,
		Loading:    s.loading,
		Display:    s.display,
		Transport:  s.transport,
	}
}
