// Package console keeps one stream session per camera of the directory and
// exposes the viewer intents (start, stop, mode) by device id.
package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/app/session"
	"github.com/dkeye/CamView/internal/core"
	"github.com/dkeye/CamView/internal/domain"
	"github.com/dkeye/CamView/internal/metric"
)

var ErrUnknownCamera = errors.New("console: unknown camera")

type FrameSource interface {
	Frame() ([]byte, bool)
}

// Device is everything owned on behalf of one camera.
type Device struct {
	Controller *session.Controller
	Transport  core.Transport
	Frames     FrameSource
}

// Builder assembles a Device. The observer must be handed to the session.
type Builder func(cam domain.Camera, obs session.Observer) (*Device, error)

type entry struct {
	camera domain.Camera
	dev    *Device
}

type Console struct {
	dir    core.Directory
	build  Builder
	hub    *Hub
	logger zerolog.Logger

	// syncMu serialises reconciliation; mu guards the maps.
	syncMu  sync.Mutex
	mu      sync.RWMutex
	entries map[domain.DeviceID]*entry
	order   []domain.DeviceID
}

func New(dir core.Directory, build Builder, m *metric.Metrics) *Console {
	hub := NewHub()
	hub.dropped = func(d domain.DeviceID) { m.Dropped(string(d), "backpressure") }
	return &Console{
		dir:     dir,
		build:   build,
		hub:     hub,
		logger:  log.With().Str("module", "console").Logger(),
		entries: make(map[domain.DeviceID]*entry),
	}
}

// Refresh re-reads the directory and reconciles sessions. Removed cameras are
// torn down before any new session is created.
func (c *Console) Refresh(ctx context.Context) error {
	cams, err := c.dir.List(ctx)
	if err != nil {
		return fmt.Errorf("console: list cameras: %w", err)
	}
	return c.Sync(cams)
}

func (c *Console) Sync(cams []domain.Camera) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	want := make(map[domain.DeviceID]domain.Camera, len(cams))
	order := make([]domain.DeviceID, 0, len(cams))
	for _, cam := range cams {
		if _, dup := want[cam.DeviceID]; dup {
			continue
		}
		want[cam.DeviceID] = cam
		order = append(order, cam.DeviceID)
	}

	c.mu.Lock()
	var removed []*entry
	for id, e := range c.entries {
		if _, keep := want[id]; !keep {
			removed = append(removed, e)
			delete(c.entries, id)
		}
	}
	c.mu.Unlock()

	for _, e := range removed {
		c.teardown(e)
	}

	var errs []error
	for _, id := range order {
		c.mu.RLock()
		_, exists := c.entries[id]
		c.mu.RUnlock()
		if exists {
			continue
		}
		e, err := c.add(want[id])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.mu.Lock()
		c.entries[id] = e
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.order = c.order[:0]
	for _, id := range order {
		if _, ok := c.entries[id]; ok {
			c.order = append(c.order, id)
		}
	}
	c.mu.Unlock()

	c.logger.Info().Int("cameras", len(order)).Int("removed", len(removed)).Msg("sessions reconciled")
	return errors.Join(errs...)
}

func (c *Console) add(cam domain.Camera) (*entry, error) {
	dev, err := c.build(cam, c.hub)
	if err != nil {
		c.logger.Error().Err(err).Str("device", string(cam.DeviceID)).Msg("build session")
		return nil, fmt.Errorf("console: %s: %w", cam.DeviceID, err)
	}
	dev.Transport.OnStateChange(dev.Controller.HandleTransportState)
	if err := dev.Transport.Connect(); err != nil {
		dev.Controller.Close()
		return nil, fmt.Errorf("console: %s: connect: %w", cam.DeviceID, err)
	}
	c.logger.Info().Str("device", string(cam.DeviceID)).Str("name", cam.Name).Msg("session created")
	return &entry{camera: cam, dev: dev}, nil
}

// teardown is synchronous: close published, handle closed, timer cancelled,
// state Idle, broker connection dropped.
func (c *Console) teardown(e *entry) {
	e.dev.Controller.Close()
	e.dev.Transport.Disconnect()
	c.hub.CloseDevice(e.camera.DeviceID)
	c.logger.Info().Str("device", string(e.camera.DeviceID)).Msg("session removed")
}

func (c *Console) Close() {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[domain.DeviceID]*entry)
	c.order = nil
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			c.teardown(e)
		}(e)
	}
	wg.Wait()
}

func (c *Console) device(id domain.DeviceID) (*Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCamera, id)
	}
	return e.dev, nil
}

func (c *Console) List() []session.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]session.Snapshot, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id].dev.Controller.Snapshot())
	}
	return out
}

func (c *Console) Get(id domain.DeviceID) (session.Snapshot, error) {
	d, err := c.device(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return d.Controller.Snapshot(), nil
}

func (c *Console) Start(id domain.DeviceID) error {
	d, err := c.device(id)
	if err != nil {
		return err
	}
	return d.Controller.Start()
}

func (c *Console) Stop(id domain.DeviceID) error {
	d, err := c.device(id)
	if err != nil {
		return err
	}
	d.Controller.Stop()
	return nil
}

func (c *Console) RequestLive(id domain.DeviceID) error {
	d, err := c.device(id)
	if err != nil {
		return err
	}
	return d.Controller.RequestLive()
}

func (c *Console) RequestPlayback(id domain.DeviceID, date, clock string) error {
	d, err := c.device(id)
	if err != nil {
		return err
	}
	return d.Controller.RequestPlayback(date, clock)
}

// Frame returns the latest still frame or the fallback thumbnail.
func (c *Console) Frame(id domain.DeviceID) ([]byte, bool, error) {
	d, err := c.device(id)
	if err != nil {
		return nil, false, err
	}
	if d.Frames == nil {
		return nil, false, nil
	}
	b, live := d.Frames.Frame()
	return b, live, nil
}

// Subscribe streams snapshots of one camera, starting with the current one.
func (c *Console) Subscribe(id domain.DeviceID) (*Subscriber, error) {
	d, err := c.device(id)
	if err != nil {
		return nil, err
	}
	s := c.hub.Subscribe(id)
	_ = s.TrySend(d.Controller.Snapshot())
	return s, nil
}

func (c *Console) Unsubscribe(s *Subscriber) { c.hub.Unsubscribe(s) }
