package session

import (
	"fmt"

	"github.com/dkeye/CamView/internal/domain"
)

// RequestLive asks the device for the live feed. It does not renegotiate;
// callers wanting a fresh connection call Start afterwards.
func (c *Controller) RequestLive() error {
	return c.requestMode(domain.LiveRequest())
}

// RequestPlayback asks the device to replay from date and clock time. Both are
// required; invalid input publishes nothing and leaves the mode unchanged.
func (c *Controller) RequestPlayback(date, clock string) error {
	req, err := domain.PlaybackRequest(date, clock)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPlayback, err)
	}
	return c.requestMode(req)
}

func (c *Controller) requestMode(req domain.ModeRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.publishModeLocked(req); err != nil {
		c.logger.Error().Err(err).Str("mode", string(req.Mode)).Msg("mode request")
		return err
	}
	c.sess.mode = req
	c.logger.Info().Str("mode", string(req.Mode)).Str("date", req.Date).Str("time", req.Time).Msg("mode requested")
	c.notifyLocked()
	return nil
}
