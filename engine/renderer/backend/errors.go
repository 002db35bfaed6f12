package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Surface acquisition failures. Lost, Outdated and Timeout are per-frame conditions;
// OutOfMemory is fatal.
var (
	ErrSurfaceLost        = errors.New("surface lost")
	ErrSurfaceOutdated    = errors.New("surface outdated")
	ErrSurfaceTimeout     = errors.New("surface timeout")
	ErrSurfaceOutOfMemory = errors.New("surface out of memory")
)

// ClassifySurfaceError wraps a raw surface acquisition error with the matching sentinel so
// callers can branch with errors.Is. Errors that already carry a sentinel, and errors that
// match none, are returned unchanged.
//
// Parameters:
//   - err: the error returned while acquiring the current surface texture
//
// Returns:
//   - error: err wrapped with one of the ErrSurface* sentinels when recognized
func ClassifySurfaceError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrSurfaceOutOfMemory, ErrSurfaceLost, ErrSurfaceOutdated, ErrSurfaceTimeout} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	msg := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(err.Error()))
	switch {
	case strings.Contains(msg, "outofmemory"):
		return fmt.Errorf("%w: %w", ErrSurfaceOutOfMemory, err)
	case strings.Contains(msg, "devicelost"):
		return fmt.Errorf("%w: %w", ErrSurfaceOutOfMemory, err)
	case strings.Contains(msg, "lost"):
		return fmt.Errorf("%w: %w", ErrSurfaceLost, err)
	case strings.Contains(msg, "outdated"):
		return fmt.Errorf("%w: %w", ErrSurfaceOutdated, err)
	case strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %w", ErrSurfaceTimeout, err)
	}
	return err
}
