// Package sink holds the media sinks a session renders into: the still-frame
// store, the recorder for remote tracks and the talkback source.
package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"
)

// FrameStore is the image sink of one camera. Frame returns the latest still
// frame or, after Reset, the fallback thumbnail.
type FrameStore struct {
	thumbnail []byte

	mu     sync.RWMutex
	latest []byte
}

func NewFrameStore(thumbnail []byte) *FrameStore {
	return &FrameStore{thumbnail: thumbnail}
}

func (s *FrameStore) ShowImage(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = frame
}

func (s *FrameStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = nil
}

// Frame reports whether the returned image is a live still frame.
func (s *FrameStore) Frame() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest != nil {
		return s.latest, true
	}
	return s.thumbnail, false
}

// LoadThumbnail reads the cached stream artifact, or renders a plain one when
// path is empty.
func LoadThumbnail(path string) ([]byte, error) {
	if path == "" {
		return DefaultThumbnail()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	return b, nil
}

func DefaultThumbnail() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 320, 180))
	for i := range img.Pix {
		img.Pix[i] = 0x30
	}
	img.SetGray(160, 90, color.Gray{Y: 0x80})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
