package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/core"
)

// SideChannelLabel names the binary data channel carrying still frames.
const SideChannelLabel = "pear"

const eventQueueSize = 32

// AudioSource feeds the local talkback track, one encoded Opus sample at a time.
type AudioSource interface {
	NextSample() (media.Sample, error)
	Close() error
}

// AudioCapture acquires a fresh source for each connection.
type AudioCapture func() (AudioSource, error)

type Options struct {
	ICEServers []string
	Capture    AudioCapture
	Logger     logging.LoggerFactory
	// IncludeLoopback gathers loopback candidates, for same-host peers.
	IncludeLoopback bool
}

func DefaultWebRTCConfig(iceServers []string) webrtc.Configuration {
	if len(iceServers) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: iceServers,
			},
		},
	}
}

// Factory creates one Connection per session attempt, all sharing one API.
type Factory struct {
	api     *webrtc.API
	config  webrtc.Configuration
	capture AudioCapture
}

func NewFactory(opts Options) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}
	pliFactory, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create PLI factory: %w", err)
	}
	interceptorRegistry.Add(pliFactory)

	se := webrtc.SettingEngine{}
	if opts.Logger != nil {
		se.LoggerFactory = opts.Logger
	}
	se.SetIncludeLoopbackCandidate(opts.IncludeLoopback)

	return &Factory{
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(interceptorRegistry),
			webrtc.WithSettingEngine(se),
		),
		config:  DefaultWebRTCConfig(opts.ICEServers),
		capture: opts.Capture,
	}, nil
}

// Connection is one peer connection with its side-channel and talkback track.
// Pion callbacks are forwarded to MediaEvents from a single queue goroutine,
// so Close may be called while the caller holds its own lock; nothing is
// delivered once Close has started.
type Connection struct {
	pc     *webrtc.PeerConnection
	events core.MediaEvents
	logger zerolog.Logger

	capture AudioCapture
	audio   *webrtc.TrackLocalStaticSample

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan func()
	done   chan struct{}

	mu       sync.Mutex
	channels []*webrtc.DataChannel

	describeOnce sync.Once
	pumpOnce     sync.Once
	closeOnce    sync.Once
	closeErr     error
}

func (f *Factory) NewMediaConnection(events core.MediaEvents) (core.MediaConnection, error) {
	return f.NewConnection(events)
}

func (f *Factory) NewConnection(events core.MediaEvents) (*Connection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		pc:      pc,
		events:  events,
		logger:  log.With().Str("module", "webrtc").Logger(),
		capture: f.capture,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan func(), eventQueueSize),
		done:    make(chan struct{}),
	}

	dc, err := pc.CreateDataChannel(SideChannelLabel, nil)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	c.adopt(dc)

	if err := c.addAudioTrack(); err != nil {
		c.Close()
		return nil, err
	}

	c.bind()
	go c.run()
	return c, nil
}

func (c *Connection) addAudioTrack() error {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "camview")
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}
	c.audio = track

	// RTCP has to be read for the interceptors to work.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *Connection) bind() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateConnected {
			c.pumpOnce.Do(func() { go c.pumpAudio() })
		}
		if cb := c.events.OnStateChange; cb != nil {
			c.dispatch(func() { cb(s) })
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Debug().Str("peer_connection_state", s.String()).Msg("Peer state")
	})

	// Candidates are not trickled: the nil candidate marks gathering complete
	// and the full local description is handed over once.
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil {
			return
		}
		c.dispatch(func() {
			c.describeOnce.Do(func() {
				desc := c.pc.LocalDescription()
				if desc == nil || c.events.OnLocalDescription == nil {
					return
				}
				c.events.OnLocalDescription(desc.SDP)
			})
		})
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			if err := c.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			}); err != nil {
				c.logger.Debug().Err(err).Msg("initial PLI")
			}
		}
		if cb := c.events.OnTrack; cb != nil {
			c.dispatch(func() { cb(track) })
		}
	})

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		c.logger.Info().Str("label", dc.Label()).Msg("remote data channel")
		c.adopt(dc)
	})
}

// adopt routes binary messages of dc to OnFrame. Both the local side-channel
// and channels opened by the device are handled the same way.
func (c *Connection) adopt(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.channels = append(c.channels, dc)
	c.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			c.logger.Debug().Str("label", dc.Label()).Int("size", len(msg.Data)).Msg("text message ignored")
			return
		}
		cb := c.events.OnFrame
		if cb == nil {
			return
		}
		frame := append([]byte(nil), msg.Data...)
		c.dispatch(func() { cb(frame) })
	})
}

func (c *Connection) dispatch(fn func()) {
	select {
	case <-c.done:
	case c.queue <- fn:
	}
}

func (c *Connection) run() {
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.queue:
			select {
			case <-c.done:
				return
			default:
			}
			fn()
		}
	}
}

// ApplyOffer runs setRemoteDescription, createAnswer and setLocalDescription.
// The answer reaches OnLocalDescription after gathering completes.
func (c *Connection) ApplyOffer(ctx context.Context, sdp string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return nil
}

// pumpAudio streams the talkback source into the local track until the
// connection closes or the source runs dry.
func (c *Connection) pumpAudio() {
	if c.capture == nil {
		return
	}
	src, err := c.capture()
	if err != nil {
		c.logger.Warn().Err(err).Msg("audio capture unavailable")
		return
	}
	defer src.Close()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
		}
		sample, err := src.NextSample()
		if errors.Is(err, io.EOF) {
			c.logger.Debug().Msg("talkback source finished")
			return
		}
		if err != nil {
			c.logger.Warn().Err(err).Msg("talkback read")
			return
		}
		if err := c.audio.WriteSample(sample); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			c.logger.Warn().Err(err).Msg("talkback write")
			return
		}
		timer.Reset(sample.Duration)
	}
}

// Close releases the side-channels and the peer connection. It is idempotent.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()

		c.mu.Lock()
		channels := c.channels
		c.channels = nil
		c.mu.Unlock()
		for _, dc := range channels {
			_ = dc.Close()
		}

		if err := c.pc.Close(); err != nil {
			c.closeErr = err
			c.logger.Error().Err(err).Msg("close error")
		} else {
			c.logger.Info().Msg("closed")
		}
	})
	return c.closeErr
}
