package core

import (
	"context"

	"github.com/dkeye/CamView/internal/domain"
)

// Directory supplies the cameras a console should hold sessions for.
type Directory interface {
	List(ctx context.Context) ([]domain.Camera, error)
}
