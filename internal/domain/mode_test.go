package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPlaybackTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12:30", "12-30-00", true},
		{"7:5", "07-05-00", true},
		{"07:05:09", "07-05-09", true},
		{"23-59-59", "23-59-59", true},
		{"00:00", "00-00-00", true},
		{"24:00", "", false},
		{"12:60", "", false},
		{"12:30:61", "", false},
		{"12", "", false},
		{"1:2:3:4", "", false},
		{"ab:cd", "", false},
		{"123:00", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := FormatPlaybackTime(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrBadTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPlaybackRequest(t *testing.T) {
	req, err := PlaybackRequest("2024-05-01", "08:15")
	require.NoError(t, err)
	assert.Equal(t, ModeRequest{Mode: ModePlayback, Date: "2024-05-01", Time: "08-15-00"}, req)

	_, err = PlaybackRequest("", "08:15")
	assert.ErrorIs(t, err, ErrDateRequired)

	_, err = PlaybackRequest("2024-05-01", "  ")
	assert.ErrorIs(t, err, ErrTimeRequired)

	_, err = PlaybackRequest("01/05/2024", "08:15")
	assert.ErrorIs(t, err, ErrBadDate)
}

func TestLiveRequest(t *testing.T) {
	assert.Equal(t, ModeRequest{Mode: ModeLive}, LiveRequest())
}
