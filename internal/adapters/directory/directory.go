// Package directory supplies the camera list: from the registry service over
// HTTP or from a static list in config.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CamView/internal/config"
	"github.com/dkeye/CamView/internal/domain"
)

var ErrDirectoryStatus = errors.New("directory: unexpected status")

const maxBody = 1 << 20

type HTTPDirectory struct {
	url    string
	userID string
	client *http.Client
	logger zerolog.Logger
}

func NewHTTP(cfg config.DirectoryConfig) *HTTPDirectory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDirectory{
		url:    cfg.URL,
		userID: cfg.UserID,
		client: &http.Client{Timeout: timeout},
		logger: log.With().Str("module", "directory").Str("url", cfg.URL).Logger(),
	}
}

type listRequest struct {
	UserID string `json:"userId"`
}

type listResponse struct {
	Cameras []struct {
		CameraID   string `json:"cameraId"`
		CameraName string `json:"cameraName"`
	} `json:"cameras"`
}

// List posts the user id and returns the cameras in registry order. Entries
// with unusable ids are skipped, duplicates keep the first occurrence.
func (d *HTTPDirectory) List(ctx context.Context) ([]domain.Camera, error) {
	body, err := json.Marshal(listRequest{UserID: d.userID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("%w: %d", ErrDirectoryStatus, resp.StatusCode)
	}

	var out listResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("directory: decode: %w", err)
	}

	cams := make([]domain.Camera, 0, len(out.Cameras))
	seen := make(map[domain.DeviceID]struct{}, len(out.Cameras))
	for _, c := range out.Cameras {
		cam, err := domain.NewCamera(c.CameraID, c.CameraName)
		if err != nil {
			d.logger.Warn().Err(err).Str("camera_id", c.CameraID).Msg("skipping camera")
			continue
		}
		if _, dup := seen[cam.DeviceID]; dup {
			continue
		}
		seen[cam.DeviceID] = struct{}{}
		cams = append(cams, cam)
	}
	d.logger.Info().Int("count", len(cams)).Msg("cameras listed")
	return cams, nil
}

// Static serves the camera list from config.
type Static struct {
	cams []domain.Camera
}

func NewStatic(list []config.CameraConfig) (*Static, error) {
	s := &Static{}
	seen := make(map[domain.DeviceID]struct{}, len(list))
	for _, c := range list {
		cam, err := domain.NewCamera(c.ID, c.Name)
		if err != nil {
			return nil, fmt.Errorf("camera %q: %w", c.ID, err)
		}
		if _, dup := seen[cam.DeviceID]; dup {
			return nil, fmt.Errorf("camera %q listed twice", c.ID)
		}
		seen[cam.DeviceID] = struct{}{}
		s.cams = append(s.cams, cam)
	}
	return s, nil
}

func (s *Static) List(context.Context) ([]domain.Camera, error) {
	return append([]domain.Camera(nil), s.cams...), nil
}
