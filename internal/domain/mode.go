package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrDateRequired = errors.New("playback date required")
	ErrTimeRequired = errors.New("playback time required")
	ErrBadDate      = errors.New("playback date must be YYYY-MM-DD")
	ErrBadTime      = errors.New("playback time must be HH:MM[:SS]")
)

type Mode string

const (
	ModeLive     Mode = "live"
	ModePlayback Mode = "playback"
)

// ModeRequest is the bare payload the device expects on its request topic.
// It is deliberately not wrapped in the JSON-RPC envelope.
type ModeRequest struct {
	Mode Mode   `json:"mode"`
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
}

func LiveRequest() ModeRequest { return ModeRequest{Mode: ModeLive} }

// PlaybackRequest validates a date and a wall-clock time and normalises the
// time to zero-padded HH-MM-SS. Missing seconds default to 00.
func PlaybackRequest(date, clock string) (ModeRequest, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return ModeRequest{}, ErrDateRequired
	}
	if clock == "" {
		return ModeRequest{}, ErrTimeRequired
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return ModeRequest{}, fmt.Errorf("%w: %q", ErrBadDate, date)
	}
	formatted, err := FormatPlaybackTime(clock)
	if err != nil {
		return ModeRequest{}, err
	}
	return ModeRequest{Mode: ModePlayback, Date: date, Time: formatted}, nil
}

// FormatPlaybackTime accepts "H:M", "HH:MM:SS" or the already dashed form.
func FormatPlaybackTime(clock string) (string, error) {
	parts := strings.FieldsFunc(clock, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("%w: %q", ErrBadTime, clock)
	}
	if len(parts) == 2 {
		parts = append(parts, "00")
	}
	limits := [3]int{23, 59, 59}
	out := make([]string, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] || len(p) > 2 {
			return "", fmt.Errorf("%w: %q", ErrBadTime, clock)
		}
		out[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(out, "-"), nil
}
