package core

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the part of *webrtc.TrackRemote the sinks read from.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// MediaEvents are bound to one MediaConnection when it is created.
// Callbacks may run on any goroutine and stop firing once Close returns.
type MediaEvents struct {
	// OnStateChange reports ICE connection state changes.
	OnStateChange func(webrtc.ICEConnectionState)
	// OnLocalDescription fires once gathering is complete with the full local SDP.
	OnLocalDescription func(sdp string)
	// OnTrack fires for every remote audio or video track.
	OnTrack func(track RemoteTrack)
	// OnFrame fires for every binary side-channel message (one still frame each).
	OnFrame func(frame []byte)
}

// MediaConnection is one negotiated connection plus its side-channel.
type MediaConnection interface {
	// ApplyOffer sets the remote offer, creates the answer and sets it locally.
	// The gathered answer is delivered through MediaEvents.OnLocalDescription.
	ApplyOffer(ctx context.Context, sdp string) error
	// Close releases the side-channel and the connection. It is idempotent.
	Close() error
}

type MediaFactory interface {
	NewMediaConnection(events MediaEvents) (MediaConnection, error)
}
