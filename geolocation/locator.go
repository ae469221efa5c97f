// Package geolocation resolves the position a dashboard starts from.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"weather-dashboard/models"
)

// DefaultTimeout bounds a single position request
const DefaultTimeout = 10 * time.Second

var (
	ErrUnsupported = errors.New("geolocation is not supported")
	ErrDenied      = errors.New("user denied geolocation")
	ErrTimeout     = errors.New("geolocation timed out")
	ErrUnavailable = errors.New("position unavailable")
)

// Platform is the position capability a Locator wraps
type Platform interface {
	CurrentPosition(ctx context.Context) (models.Coordinate, error)
}

// Locator requests the current position from its platform exactly once.
// Every call to Locate returns that single result.
type Locator struct {
	platform Platform
	timeout  time.Duration

	once  sync.Once
	coord models.Coordinate
	err   error
}

// NewLocator creates a Locator. A nil platform reports ErrUnsupported.
func NewLocator(platform Platform, timeout time.Duration) *Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locator{platform: platform, timeout: timeout}
}

// Locate returns the position or an error matching one of the package sentinels
func (l *Locator) Locate(ctx context.Context) (models.Coordinate, error) {
	l.once.Do(func() {
		l.coord, l.err = l.request(ctx)
	})
	return l.coord, l.err
}

func (l *Locator) request(ctx context.Context) (models.Coordinate, error) {
	if l.platform == nil {
		return models.Coordinate{}, ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	coord, err := l.platform.CurrentPosition(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		return models.Coordinate{}, ErrTimeout
	case errors.Is(err, ErrUnsupported), errors.Is(err, ErrDenied),
		errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return models.Coordinate{}, err
	default:
		return models.Coordinate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if !coord.Valid() {
		return models.Coordinate{}, fmt.Errorf("%w: invalid coordinate %s", ErrUnavailable, coord)
	}
	return coord, nil
}

// Fixed is a Platform that already knows the position, e.g. one granted by the client
type Fixed models.Coordinate

func (f Fixed) CurrentPosition(context.Context) (models.Coordinate, error) {
	return models.Coordinate(f), nil
}

// Denied is a Platform whose user refused the permission prompt
type Denied struct{}

func (Denied) CurrentPosition(context.Context) (models.Coordinate, error) {
	return models.Coordinate{}, ErrDenied
}
