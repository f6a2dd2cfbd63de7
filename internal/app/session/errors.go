package session

import "errors"

var (
	ErrMalformedMessage  = errors.New("session: malformed signaling message")
	ErrUnexpectedMessage = errors.New("session: unexpected signaling message")
	ErrNegotiation       = errors.New("session: negotiation failed")
	ErrTransport         = errors.New("session: transport unavailable")
	ErrInvalidPlayback   = errors.New("session: invalid playback request")
	ErrClosed            = errors.New("session: closed")
)
