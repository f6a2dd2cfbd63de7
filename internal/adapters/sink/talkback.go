package sink

import (
	"fmt"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const opusClockRate = 48000

// OggSource replays an Ogg/Opus file as the local audio capture, one page per
// sample, paced by granule position.
type OggSource struct {
	f           *os.File
	r           *oggreader.OggReader
	lastGranule uint64
}

func OpenOgg(path string) (*OggSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open talkback: %w", err)
	}
	r, _, err := oggreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("talkback is not ogg: %w", err)
	}
	return &OggSource{f: f, r: r}, nil
}

func (s *OggSource) NextSample() (media.Sample, error) {
	page, header, err := s.r.ParseNextPage()
	if err != nil {
		return media.Sample{}, err
	}
	var samples uint64
	if header.GranulePosition > s.lastGranule {
		samples = header.GranulePosition - s.lastGranule
	}
	s.lastGranule = header.GranulePosition
	return media.Sample{
		Data:     page,
		Duration: time.Duration(samples) * time.Second / opusClockRate,
	}, nil
}

func (s *OggSource) Close() error { return s.f.Close() }
