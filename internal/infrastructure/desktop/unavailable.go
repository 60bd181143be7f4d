package desktop

import (
	"context"
	"image"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/infrastructure/automation"
)

// Unavailable is the backend on platforms without UI Automation.
type Unavailable struct{}

func (Unavailable) Windows(context.Context) ([]domain.Window, error) {
	return nil, domain.ErrDesktopUnavailable
}

func (Unavailable) Invoke(context.Context, domain.Window, domain.Target) (string, error) {
	return "", domain.ErrDesktopUnavailable
}

func (Unavailable) ControlTree(context.Context, domain.Window, int) (*domain.Control, error) {
	return nil, domain.ErrDesktopUnavailable
}

func (Unavailable) Capture(context.Context, domain.Rect) (image.Image, error) {
	return nil, domain.ErrDesktopUnavailable
}

func (Unavailable) Click(context.Context, domain.Point) error { return domain.ErrDesktopUnavailable }

func (Unavailable) Type(context.Context, string) error { return domain.ErrDesktopUnavailable }

var _ automation.Backend = Unavailable{}
