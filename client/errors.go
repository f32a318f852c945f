package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/famomatic/ytcipher/internal/orchestrator"
	"github.com/famomatic/ytcipher/internal/types"
)

var (
	// ErrInvalidInput indicates malformed input (not a video ID/url).
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable indicates video is unavailable.
	ErrUnavailable = errors.New("video unavailable")
	// ErrLoginRequired indicates authenticated session is required.
	ErrLoginRequired = errors.New("login required")
	// ErrNoPlayableFormats indicates no usable formats were found.
	ErrNoPlayableFormats = errors.New("no playable formats")
	// ErrChallengeNotSolved indicates ciphered formats could not be resolved.
	ErrChallengeNotSolved = errors.New("challenge not solved")
)

// mapError attaches the public sentinel matching err. The original error
// stays in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case errors.Is(err, types.ErrLoginRequired) || errors.Is(err, types.ErrAgeRestricted):
		return fmt.Errorf("%w: %w", ErrLoginRequired, err)
	case errors.Is(err, types.ErrVideoUnavailable):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var npf *orchestrator.NoPlayableFormatsError
	if errors.As(err, &npf) && npf.Rejected > 0 {
		return fmt.Errorf("%w: %w", ErrChallengeNotSolved, err)
	}
	if errors.Is(err, types.ErrNoPlayableFormats) || errors.Is(err, types.ErrNoClientsAvailable) {
		return fmt.Errorf("%w: %w", ErrNoPlayableFormats, err)
	}
	return err
}
