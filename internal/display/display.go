// Package display delivers text renders to a user's display surface.
package display

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that a surface has no route to the session's display.
var ErrUnavailable = errors.New("display unavailable")

// Render is one text wall. A zero Duration keeps it on screen until replaced.
type Render struct {
	Content  string
	Duration time.Duration
}

// Surface shows renders for a session.
type Surface interface {
	Show(ctx context.Context, sessionID string, r Render) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context, sessionID string, r Render) error

func (f SurfaceFunc) Show(ctx context.Context, sessionID string, r Render) error {
	return f(ctx, sessionID, r)
}

// Chain tries each surface in order and stops at the first that accepts the
// render. Nil entries are skipped.
type Chain []Surface

func (c Chain) Show(ctx context.Context, sessionID string, r Render) error {
	var errs []error
	for _, s := range c {
		if s == nil {
			continue
		}
		err := s.Show(ctx, sessionID, r)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrUnavailable
	}
	return errors.Join(errs...)
}
