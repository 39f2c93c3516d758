// Package biometric is the capture-side stub of the face authentication
// factor. Template comparison happens in an external matching service; this
// gateway only vouches that a capture blob is present and well-formed.
package biometric

import (
	"context"
	"errors"

	"securelogin/internal/auth"
)

var (
	ErrUnavailable = errors.New("biometric: capture device unavailable")
	ErrEmptySample = errors.New("biometric: empty sample")
)

const maxSampleBytes = 1 << 20

var _ auth.BiometricGateway = (*Gateway)(nil)

// Gateway implements auth.BiometricGateway as a pass-through. In the
// deployed system samples arrive from the client device; server-side
// capture is only meaningful where a camera is attached, so Capture
// reports unavailability by default.
type Gateway struct {
	available bool
}

// New constructs a gateway; available reports whether a capture device is
// reachable from this process.
func New(available bool) *Gateway {
	return &Gateway{available: available}
}

func (g *Gateway) Available() bool { return g.available }

func (g *Gateway) Capture(ctx context.Context) (auth.BiometricSample, error) {
	if !g.available {
		return nil, ErrUnavailable
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	// No local capture hardware abstraction is wired in; client devices
	// submit samples through the API instead.
	return nil, ErrUnavailable
}

// Confirm acknowledges a capture. The match decision is explicitly out of
// scope here and belongs to the external comparison service.
func (g *Gateway) Confirm(ctx context.Context, accountID string, sample auth.BiometricSample) error {
	if len(sample) == 0 {
		return ErrEmptySample
	}
	if len(sample) > maxSampleBytes {
		return errors.New("biometric: sample too large")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return nil
}
