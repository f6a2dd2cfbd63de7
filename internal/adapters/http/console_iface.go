package http

import (
	"context"

	"github.com/dkeye/CamView/internal/app/console"
	"github.com/dkeye/CamView/internal/app/session"
	"github.com/dkeye/CamView/internal/domain"
)

//go:generate mockgen -source=console_iface.go -destination=mocks/console_mock.go -package=mocks

// Console is what the HTTP surface needs from the session console.
type Console interface {
	List() []session.Snapshot
	Get(id domain.DeviceID) (session.Snapshot, error)
	Start(id domain.DeviceID) error
	Stop(id domain.DeviceID) error
	RequestLive(id domain.DeviceID) error
	RequestPlayback(id domain.DeviceID, date, clock string) error
	Frame(id domain.DeviceID) ([]byte, bool, error)
	Subscribe(id domain.DeviceID) (*console.Subscriber, error)
	Unsubscribe(s *console.Subscriber)
	Refresh(ctx context.Context) error
}
