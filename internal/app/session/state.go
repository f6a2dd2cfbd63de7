package session

import (
	"fmt"

	"github.com/dkeye/CamView/internal/core"
	"github.com/dkeye/CamView/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateOfferSent
	StateNegotiating
	StateStreaming
	StateRetrying
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer_sent"
	case StateNegotiating:
		return "negotiating"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// connecting reports whether connection-state events count for this state.
func (s State) connecting() bool {
	return s == StateOfferSent || s == StateNegotiating || s == StateStreaming
}

// Display says which media surface the rendering layer should show.
// The image sink and the live video sink are mutually exclusive.
type Display int

const (
	DisplayThumbnail Display = iota
	DisplayVideo
	DisplayImage
)

func (d Display) String() string {
	switch d {
	case DisplayVideo:
		return "video"
	case DisplayImage:
		return "image"
	default:
		return "thumbnail"
	}
}

func (d Display) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

const (
	StatusWaiting     = "waiting"
	StatusConnecting  = "connecting"
	StatusNegotiating = "negotiating"
	StatusStreaming   = "streaming"
	StatusStopped     = "stopped"
	StatusError       = "error"
	StatusFailed      = "failed (max retries)"
)

func retryingStatus(n, max int) string { return fmt.Sprintf("retrying (%d/%d)", n, max) }

// Snapshot is a read-only view of a session, handed to observers on every transition.
type Snapshot struct {
	Seq        uint64              `json:"seq"`
	DeviceID   domain.DeviceID     `json:"deviceId"`
	CameraName string              `json:"cameraName"`
	State      State               `json:"state"`
	Status     string              `json:"status"`
	Mode       domain.ModeRequest  `json:"mode"`
	RetryCount int                 `json:"retryCount"`
	MaxRetries int                 `json:"maxRetries"`
	Loading    bool                `json:"loading"`
	Display    Display             `json:"display"`
	Transport  core.TransportState `json:"transport"`
}
