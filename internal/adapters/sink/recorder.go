package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/core"
	"github.com/dkeye/CamView/internal/domain"
	"github.com/dkeye/CamView/internal/metric"
)

type rtpWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// Recorder consumes the remote tracks of a session. With an empty dir the
// packets are only counted; otherwise each track is written to its own file.
type Recorder struct {
	device  domain.DeviceID
	dir     string
	metrics *metric.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewRecorder(device domain.DeviceID, dir string, m *metric.Metrics) *Recorder {
	return &Recorder{
		device:  device,
		dir:     dir,
		metrics: m,
		logger:  log.With().Str("module", "sink").Str("device", string(device)).Logger(),
		now:     time.Now,
	}
}

func (r *Recorder) AttachVideo(ctx context.Context, track core.RemoteTrack) {
	r.consume(ctx, track)
}

func (r *Recorder) AttachAudio(ctx context.Context, track core.RemoteTrack) {
	r.consume(ctx, track)
}

func (r *Recorder) consume(ctx context.Context, track core.RemoteTrack) {
	kind := track.Kind().String()
	logger := r.logger.With().Str("kind", kind).Str("track_id", track.ID()).Logger()

	w, err := r.open(track.Codec())
	if err != nil {
		logger.Warn().Err(err).Msg("recording disabled for track")
		w = nil
	}
	if w != nil {
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn().Err(err).Msg("close recording")
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("track ctx done")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug().Err(err).Msg("read RTP stopped")
			}
			return
		}
		r.metrics.RTPPacket(string(r.device), kind)
		if w == nil {
			continue
		}
		if err := w.WriteRTP(pkt); err != nil {
			logger.Error().Err(err).Msg("write RTP error, recording stopped")
			_ = w.Close()
			w = nil
		}
	}
}

// open returns nil without error when recording is off.
func (r *Recorder) open(codec webrtc.RTPCodecParameters) (rtpWriter, error) {
	if r.dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s-%s", r.device, r.now().UTC().Format("20060102T150405.000"))
	switch {
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeVP8):
		return ivfwriter.New(filepath.Join(r.dir, base+".ivf"))
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeH264):
		return h264writer.New(filepath.Join(r.dir, base+".h264"))
	case strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus):
		return oggwriter.New(filepath.Join(r.dir, base+".ogg"), codec.ClockRate, codec.Channels)
	default:
		return nil, fmt.Errorf("no recorder for %s", codec.MimeType)
	}
}
