package sink

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/CamView/internal/metric"
)

func TestFrameStore(t *testing.T) {
	s := NewFrameStore([]byte("thumb"))

	b, live := s.Frame()
	assert.False(t, live)
	assert.Equal(t, []byte("thumb"), b)

	s.ShowImage([]byte("frame-1"))
	s.ShowImage([]byte("frame-2"))
	b, live = s.Frame()
	assert.True(t, live)
	assert.Equal(t, []byte("frame-2"), b)

	s.Reset()
	b, live = s.Frame()
	assert.False(t, live)
	assert.Equal(t, []byte("thumb"), b)
}

func TestThumbnail(t *testing.T) {
	b, err := LoadThumbnail("")
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)

	path := filepath.Join(t.TempDir(), "thumb.jpg")
	require.NoError(t, os.WriteFile(path, []byte("cached"), 0o600))
	b, err = LoadThumbnail(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), b)

	_, err = LoadThumbnail(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

type fakeTrack struct {
	kind  webrtc.RTPCodecType
	codec webrtc.RTPCodecParameters
	pkts  []*rtp.Packet
	err   error
}

func (f *fakeTrack) ID() string                       { return "t1" }
func (f *fakeTrack) Kind() webrtc.RTPCodecType        { return f.kind }
func (f *fakeTrack) Codec() webrtc.RTPCodecParameters { return f.codec }
func (f *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(f.pkts) == 0 {
		return nil, nil, f.err
	}
	p := f.pkts[0]
	f.pkts = f.pkts[1:]
	return p, nil, nil
}

func opusPackets(n int) []*rtp.Packet {
	out := make([]*rtp.Packet, n)
	for i := range out {
		out[i] = &rtp.Packet{
			Header:  rtp.Header{Version: 2, PayloadType: 111, SequenceNumber: uint16(i + 1), Timestamp: uint32(960 * (i + 1)), SSRC: 7},
			Payload: []byte{0xf8, 0xff, 0xfe},
		}
	}
	return out
}

func opusCodec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}
}

func TestRecorderCountsPackets(t *testing.T) {
	m := metric.NewMetrics()
	r := NewRecorder("cam-1", "", m)
	r.AttachAudio(context.Background(), &fakeTrack{kind: webrtc.RTPCodecTypeAudio, codec: opusCodec(), pkts: opusPackets(5), err: io.EOF})

	assert.InDelta(t, 5, testutil.ToFloat64(m.RTPPackets.WithLabelValues("cam-1", "audio")), 0)
}

func TestRecorderStopsOnCancelledContext(t *testing.T) {
	m := metric.NewMetrics()
	r := NewRecorder("cam-1", "", m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.AttachVideo(ctx, &fakeTrack{kind: webrtc.RTPCodecTypeVideo, pkts: opusPackets(3), err: errors.New("closed")})

	assert.InDelta(t, 0, testutil.ToFloat64(m.RTPPackets.WithLabelValues("cam-1", "video")), 0)
}

func TestRecorderWritesOgg(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder("cam-1", dir, nil)
	r.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }
	r.AttachAudio(context.Background(), &fakeTrack{kind: webrtc.RTPCodecTypeAudio, codec: opusCodec(), pkts: opusPackets(5), err: io.EOF})

	path := filepath.Join(dir, "cam-1-20240309T100000.000.ogg")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRecorderUnknownCodecStillDrains(t *testing.T) {
	m := metric.NewMetrics()
	r := NewRecorder("cam-1", t.TempDir(), m)
	codec := webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: "video/x-unknown"}}
	r.AttachVideo(context.Background(), &fakeTrack{kind: webrtc.RTPCodecTypeVideo, codec: codec, pkts: opusPackets(2), err: io.EOF})

	assert.InDelta(t, 2, testutil.ToFloat64(m.RTPPackets.WithLabelValues("cam-1", "video")), 0)
}

func TestOggSourceReplaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talkback.ogg")
	w, err := oggwriter.New(path, 48000, 2)
	require.NoError(t, err)
	for _, p := range opusPackets(10) {
		require.NoError(t, w.WriteRTP(p))
	}
	require.NoError(t, w.Close())

	src, err := OpenOgg(path)
	require.NoError(t, err)
	defer src.Close()

	var pages int
	var total time.Duration
	for {
		s, err := src.NextSample()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		pages++
		total += s.Duration
	}
	assert.GreaterOrEqual(t, pages, 10)
	assert.Positive(t, total)
}

func TestOpenOggRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.ogg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not ogg"), 0o600))
	_, err := OpenOgg(path)
	assert.Error(t, err)

	_, err = OpenOgg(filepath.Join(t.TempDir(), "missing.ogg"))
	assert.Error(t, err)
}
