package cache

import (
	"errors"
	"fmt"

	"github.com/IvanBrykalov/segcache/internal/singleflight"
)

var (
	// ErrInvalidConfig is wrapped by every error returned from Builder.Build.
	ErrInvalidConfig = errors.New("cache: invalid configuration")

	// ErrNoLoader is returned by GetOrLoad when the builder had no Loader.
	ErrNoLoader = errors.New("cache: no Loader provided")

	// ErrLoaderPanicked is returned to callers that waited on a load whose
	// loader panicked in another goroutine.
	ErrLoaderPanicked = singleflight.ErrLeaderPanicked
)

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
