package inject

import (
	"context"

	"go.viam.com/hoverbot/components/drive"
)

// Drive is an injected drive.
type Drive struct {
	drive.Drive
	EngageFunc func(ctx context.Context, dir drive.Direction) error
	StopFunc   func(ctx context.Context) error
	CloseFunc  func(ctx context.Context) error
}

// Engage calls the injected Engage or the real version.
func (d *Drive) Engage(ctx context.Context, dir drive.Direction) error {
	if d.EngageFunc == nil {
		return d.Drive.Engage(ctx, dir)
	}
	return d.EngageFunc(ctx, dir)
}

// Stop calls the injected Stop or the real version.
func (d *Drive) Stop(ctx context.Context) error {
	if d.StopFunc == nil {
		return d.Drive.Stop(ctx)
	}
	return d.StopFunc(ctx)
}

// Close calls the injected Close or the real version.
func (d *Drive) Close(ctx context.Context) error {
	if d.CloseFunc == nil {
		if d.Drive == nil {
			return nil
		}
		return d.Drive.Close(ctx)
	}
	return d.CloseFunc(ctx)
}
