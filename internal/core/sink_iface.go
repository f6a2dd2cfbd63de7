package core

import "context"

// VideoSink receives the live video track. It owns the read loop and must
// return when ctx is done or the track ends.
type VideoSink interface {
	AttachVideo(ctx context.Context, track RemoteTrack)
}

type AudioSink interface {
	AttachAudio(ctx context.Context, track RemoteTrack)
}

// ImageSink shows single still frames and falls back to the cached thumbnail on Reset.
type ImageSink interface {
	ShowImage(frame []byte)
	Reset()
}

type Sinks struct {
	Video VideoSink
	Audio AudioSink
	Image ImageSink
}
