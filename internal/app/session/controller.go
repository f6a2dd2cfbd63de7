// Package session implements the per-camera stream session controller: the
// offer/answer exchange over the device's signaling topics, bounded automatic
// retry on connectivity failure, and live/playback mode requests.
//
// Every inbound event (transport delivery, connection state change, retry
// timer) is serialised on the controller mutex and treated as a no-op unless it
// belongs to the current attempt and state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/core"
	"github.com/dkeye/CamView/internal/domain"
	"github.com/dkeye/CamView/internal/metric"
)

// Observer receives a snapshot after every transition. It is called with the
// controller lock held and must not call back into the controller.
type Observer interface {
	OnSnapshot(Snapshot)
}

type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnSnapshot(s Snapshot) { f(s) }

type Config struct {
	Camera    domain.Camera
	Signaling core.Signaling
	Media     core.MediaFactory
	Sinks     core.Sinks
	Observer  Observer
	Clock     Clock
	Metrics   *metric.Metrics
	// AutoStart sends the offer as soon as the transport is connected and the
	// reply topic is subscribed, if the session is still idle.
	AutoStart bool
}

type Controller struct {
	cfg    Config
	logger zerolog.Logger
	device string

	mu     sync.Mutex
	sess   *Session
	seq    uint64
	closed bool
}

func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	c := &Controller{
		cfg:    cfg,
		device: string(cfg.Camera.DeviceID),
		sess:   newSession(cfg.Camera),
		logger: log.With().
			Str("module", "session").
			Str("device", string(cfg.Camera.DeviceID)).
			Logger(),
	}
	c.cfg.Metrics.State(c.device, "", StateIdle.String())
	return c
}

// IDs returns the session's offer, answer and close correlation ids.
func (c *Controller) IDs() (offer, answer, closeID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.OfferID, c.sess.AnswerID, c.sess.CloseID
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.snapshot(c.seq)
}

// Start opens a fresh attempt: any prior handle and pending retry are discarded
// before the new handle is created and the offer is published.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if st := c.sess.state; st == StateFailed || st == StateClosed {
		c.sess.retryCount = 0
	}
	c.cancelRetryLocked()
	c.discardAttemptLocked()
	err := c.startAttemptLocked()
	c.notifyLocked()
	return err
}

// Stop publishes close and tears the session down synchronously.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopLocked() {
		c.notifyLocked()
	}
}

// Close is the unmount path: it stops the session, leaves it Idle and
// unsubscribes from the reply topic. Later events are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.closed = true
	c.setStateLocked(StateIdle)
	c.setStatusLocked(StatusWaiting)
	c.notifyLocked()
	c.mu.Unlock()

	if err := c.cfg.Signaling.Unsubscribe(ReplyTopic(c.cfg.Camera.DeviceID)); err != nil {
		c.logger.Debug().Err(err).Msg("unsubscribe on close")
	}
	c.cfg.Metrics.Forget(c.device)
	c.logger.Info().Msg("session closed")
}

// HandleTransportState is wired to the transport's state notifications.
// Transport errors are surfaced but never retried here.
func (c *Controller) HandleTransportState(state core.TransportState) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.sess.transport = state
	switch state {
	case core.TransportError:
		c.transportFaultLocked()
	case core.TransportConnected:
		if prev := c.sess.restoreStatus; prev != "" {
			c.setStatusLocked(prev)
		}
	}
	c.notifyLocked()
	c.mu.Unlock()

	c.cfg.Metrics.Transport(c.device, state == core.TransportConnected)
	if state != core.TransportConnected {
		c.logger.Info().Str("transport", string(state)).Msg("transport state")
		return
	}

	// Subscribe without the lock: the transport may deliver on the topic
	// before the subscription call returns.
	topic := ReplyTopic(c.cfg.Camera.DeviceID)
	if err := c.cfg.Signaling.Subscribe(topic, core.QoSAtMostOnce, c.HandleReply); err != nil {
		c.logger.Error().Err(err).Str("topic", topic).Msg("subscribe failed")
		c.mu.Lock()
		c.transportFaultLocked()
		c.notifyLocked()
		c.mu.Unlock()
		return
	}
	c.logger.Info().Str("topic", topic).Msg("subscribed")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch {
	case c.sess.state == StateOfferSent && c.sess.active != nil:
		// a reply sent while we were offline is lost with the clean session
		if err := c.publishLocked(MethodOffer, c.sess.OfferID, nil, core.QoSExactlyOnce); err != nil {
			c.logger.Warn().Err(err).Msg("offer re-send failed")
			c.transportFaultLocked()
		} else {
			c.logger.Info().Int("offer_id", c.sess.OfferID).Msg("offer re-sent after reconnect")
		}
		c.notifyLocked()
	case c.cfg.AutoStart && c.sess.state == StateIdle:
		if err := c.startAttemptLocked(); err != nil {
			c.logger.Warn().Err(err).Msg("auto start failed")
		}
		c.notifyLocked()
	}
}

// HandleReply dispatches one message from the reply topic.
func (c *Controller) HandleReply(payload []byte) {
	reply, err := ParseReply(payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	if c.closed {
		c.dropLocked("closed", "reply after close")
		return
	}
	if err != nil {
		c.logger.Warn().Err(err).Bytes("payload", truncate(payload)).Msg("dropping reply")
		c.cfg.Metrics.Dropped(c.device, "malformed")
		return
	}

	switch *reply.ID {
	case s.OfferID:
		if s.active == nil {
			c.dropLocked("stale", "offer reply while no attempt is active")
			return
		}
		c.handleOfferReplyLocked(reply)
	case s.AnswerID:
		c.logger.Info().Msg("answer acknowledged")
	case s.CloseID:
		c.logger.Info().Msg("close acknowledged")
	default:
		err := fmt.Errorf("%w: id %d method %q", ErrUnexpectedMessage, *reply.ID, reply.Method)
		c.dropLocked("unmatched", err.Error())
	}
}

func (c *Controller) handleOfferReplyLocked(reply Reply) {
	s := c.sess
	if s.state != StateOfferSent {
		c.dropLocked("stale", "offer reply in state "+s.state.String())
		return
	}
	if reply.Error != nil {
		c.logger.Error().Int("code", reply.Error.Code).Str("message", reply.Error.Message).Msg("device rejected offer")
		c.negotiationFailedLocked()
		return
	}
	offer, err := reply.SDP()
	if err == nil {
		err = validateOffer(offer)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping offer reply")
		c.cfg.Metrics.Dropped(c.device, "malformed")
		return
	}

	c.setStateLocked(StateNegotiating)
	c.setStatusLocked(StatusNegotiating)
	c.notifyLocked()
	go c.negotiate(s.active, offer)
}

// negotiate runs the suspension point outside the lock; its settlement is
// discarded if the attempt was replaced or torn down meanwhile.
func (c *Controller) negotiate(a *attempt, offer string) {
	err := a.conn.ApplyOffer(a.ctx, offer)
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.active != a || c.sess.state != StateNegotiating {
		c.logger.Debug().Err(err).Msg("stale negotiation result discarded")
		return
	}
	c.logger.Error().Err(fmt.Errorf("%w: %w", ErrNegotiation, err)).Msg("negotiation failed")
	c.negotiationFailedLocked()
}

// negotiationFailedLocked leaves the session stalled until a manual restart.
func (c *Controller) negotiationFailedLocked() {
	c.setStatusLocked(StatusError)
	c.sess.loading = false
	c.cfg.Metrics.NegotiationError(c.device)
	c.notifyLocked()
}

func (c *Controller) onLocalDescription(a *attempt, localSDP string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	if s.active != a || a.answered || s.state != StateNegotiating {
		c.dropLocked("stale", "local description for a replaced attempt")
		return
	}
	a.answered = true
	if err := c.publishLocked(MethodAnswer, s.AnswerID, localSDP, core.QoSAtMostOnce); err != nil {
		c.logger.Error().Err(err).Msg("publish answer")
		c.setStatusLocked(StatusError)
		c.notifyLocked()
		return
	}
	c.logger.Info().Int("sdp_len", len(localSDP)).Msg("answer sent")
}

func (c *Controller) onConnectionState(a *attempt, state webrtc.ICEConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	if s.active != a {
		c.dropLocked("stale", "connection state "+state.String()+" for a replaced attempt")
		return
	}
	c.logger.Info().Str("ice_state", state.String()).Str("state", s.state.String()).Msg("ICE state")

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		if !s.state.connecting() {
			return
		}
		c.cancelRetryLocked()
		c.setStateLocked(StateStreaming)
		s.retryCount = 0
		s.loading = false
		c.setStatusLocked(StatusStreaming)
		c.notifyLocked()

	case webrtc.ICEConnectionStateFailed,
		webrtc.ICEConnectionStateDisconnected,
		webrtc.ICEConnectionStateClosed:
		if !s.state.connecting() {
			return
		}
		c.discardAttemptLocked()
		if s.retryCount < MaxRetries {
			s.retryCount++
			c.setStateLocked(StateRetrying)
			c.setStatusLocked(retryingStatus(s.retryCount, MaxRetries))
			c.scheduleRetryLocked()
			c.cfg.Metrics.Retry(c.device)
			c.logger.Warn().Int("retry", s.retryCount).Int("max", MaxRetries).Msg("connection lost, retrying")
		} else {
			c.setStateLocked(StateFailed)
			c.setStatusLocked(StatusFailed)
			s.loading = false
			c.cfg.Metrics.Failure(c.device)
			c.logger.Error().Int("retries", s.retryCount).Msg("giving up")
		}
		c.notifyLocked()
	}
}

func (c *Controller) onTrack(a *attempt, track core.RemoteTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.active != a {
		return
	}
	switch track.Kind() {
	case webrtc.RTPCodecTypeVideo:
		c.sess.display = DisplayVideo
		if v := c.cfg.Sinks.Video; v != nil {
			go v.AttachVideo(a.ctx, track)
		}
	case webrtc.RTPCodecTypeAudio:
		if au := c.cfg.Sinks.Audio; au != nil {
			go au.AttachAudio(a.ctx, track)
		}
	}
	c.logger.Info().Str("kind", track.Kind().String()).Str("track_id", track.ID()).Msg("remote track")
	c.notifyLocked()
}

func (c *Controller) onFrame(a *attempt, frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.active != a {
		return
	}
	if img := c.cfg.Sinks.Image; img != nil {
		img.ShowImage(frame)
	}
	c.cfg.Metrics.StillFrame(c.device)
	if c.sess.display != DisplayImage {
		c.sess.display = DisplayImage
		c.notifyLocked()
	}
}

func (c *Controller) onRetryTimer(rt *retryTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	if c.closed || s.retry != rt {
		return
	}
	s.retry = nil
	if s.state != StateRetrying {
		return
	}
	if err := c.startAttemptLocked(); err != nil {
		c.notifyLocked()
		return
	}
	if err := c.publishModeLocked(s.mode); err != nil {
		c.logger.Warn().Err(err).Msg("republish mode")
	}
	c.notifyLocked()
}

// startAttemptLocked creates the handle and publishes the offer. On failure the
// session falls back to Idle with status error.
func (c *Controller) startAttemptLocked() error {
	s := c.sess
	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{ctx: ctx, cancel: cancel}
	conn, err := c.cfg.Media.NewMediaConnection(core.MediaEvents{
		OnStateChange:      func(st webrtc.ICEConnectionState) { c.onConnectionState(a, st) },
		OnLocalDescription: func(sdp string) { c.onLocalDescription(a, sdp) },
		OnTrack:            func(t core.RemoteTrack) { c.onTrack(a, t) },
		OnFrame:            func(f []byte) { c.onFrame(a, f) },
	})
	if err != nil {
		cancel()
		c.setStateLocked(StateIdle)
		c.setStatusLocked(StatusError)
		s.loading = false
		c.logger.Error().Err(err).Msg("create peer connection")
		return fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	a.conn = conn
	s.active = a

	if err := c.publishLocked(MethodOffer, s.OfferID, nil, core.QoSExactlyOnce); err != nil {
		c.discardAttemptLocked()
		c.setStateLocked(StateIdle)
		c.setStatusLocked(StatusError)
		s.loading = false
		c.logger.Error().Err(err).Msg("publish offer")
		return err
	}
	c.setStateLocked(StateOfferSent)
	c.setStatusLocked(StatusConnecting)
	s.loading = true
	c.logger.Info().Int("offer_id", s.OfferID).Int("retry", s.retryCount).Msg("offer sent")
	return nil
}

// stopLocked reports whether anything changed.
func (c *Controller) stopLocked() bool {
	s := c.sess
	if s.state == StateIdle || s.state == StateClosed {
		c.cancelRetryLocked()
		c.discardAttemptLocked()
		return false
	}
	if err := c.publishLocked(MethodClose, s.CloseID, nil, core.QoSAtMostOnce); err != nil {
		c.logger.Warn().Err(err).Msg("publish close")
	}
	c.cancelRetryLocked()
	c.discardAttemptLocked()
	s.retryCount = 0
	s.loading = false
	c.setStatusLocked(StatusStopped)
	c.setStateLocked(StateClosed)
	c.logger.Info().Msg("stopped")
	return true
}

// discardAttemptLocked closes the handle and reverts to the fallback thumbnail.
// The MediaConnection contract lets Close run under the controller lock.
func (c *Controller) discardAttemptLocked() {
	s := c.sess
	if a := s.active; a != nil {
		s.active = nil
		a.cancel()
		if err := a.conn.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close peer connection")
		}
	}
	s.display = DisplayThumbnail
	if img := c.cfg.Sinks.Image; img != nil {
		img.Reset()
	}
}

func (c *Controller) scheduleRetryLocked() {
	c.cancelRetryLocked()
	rt := &retryTimer{}
	rt.t = c.cfg.Clock.AfterFunc(RetryDelay, func() { c.onRetryTimer(rt) })
	c.sess.retry = rt
}

func (c *Controller) cancelRetryLocked() {
	if c.sess.retry != nil {
		c.sess.retry.stop()
		c.sess.retry = nil
	}
}

func (c *Controller) publishLocked(method Method, id int, params any, qos byte) error {
	payload, err := encodeRequest(method, id, params)
	if err != nil {
		return err
	}
	if err := c.cfg.Signaling.Publish(RequestTopic(c.cfg.Camera.DeviceID), qos, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	c.cfg.Metrics.Published(c.device, string(method))
	return nil
}

func (c *Controller) publishModeLocked(req domain.ModeRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := c.cfg.Signaling.Publish(RequestTopic(c.cfg.Camera.DeviceID), core.QoSExactlyOnce, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	c.cfg.Metrics.Published(c.device, "mode_"+string(req.Mode))
	return nil
}

func (c *Controller) setStateLocked(next State) {
	prev := c.sess.state
	c.sess.state = next
	c.cfg.Metrics.State(c.device, prev.String(), next.String())
}

// setStatusLocked records a status driven by the state machine.
func (c *Controller) setStatusLocked(status string) {
	c.sess.status = status
	c.sess.restoreStatus = ""
}

// transportFaultLocked shows a broker-caused error until the next connected
// notification, which puts back the status the state machine last set.
func (c *Controller) transportFaultLocked() {
	if c.sess.restoreStatus == "" {
		c.sess.restoreStatus = c.sess.status
	}
	c.sess.status = StatusError
}

func (c *Controller) notifyLocked() {
	c.seq++
	if c.cfg.Observer != nil {
		c.cfg.Observer.OnSnapshot(c.sess.snapshot(c.seq))
	}
}

func (c *Controller) dropLocked(reason, detail string) {
	c.logger.Debug().Str("reason", reason).Str("detail", detail).Msg("dropped")
	c.cfg.Metrics.Dropped(c.device, reason)
}

func validateOffer(offer string) error {
	var desc sdp.SessionDescription
	if err := desc.UnmarshalString(offer); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return fmt.Errorf("%w: offer has no media sections", ErrMalformedMessage)
	}
	return nil
}

func truncate(b []byte) []byte {
	const limit = 256
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
