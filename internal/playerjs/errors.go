package playerjs

import (
	"errors"
	"fmt"
)

var (
	ErrScriptURLNotFound = errors.New("player script url not found")
	ErrPatternNotFound   = errors.New("pattern not found")
	ErrStrategyPanic     = errors.New("strategy panicked")
)

// ScriptLocationError means the player script URL could not be derived from
// the seed page.
type ScriptLocationError struct {
	SeedURL string
	Err     error
}

func (e *ScriptLocationError) Error() string {
	return fmt.Sprintf("locate player script from %s: %v", e.SeedURL, e.Err)
}

func (e *ScriptLocationError) Unwrap() error {
	return e.Err
}

// ScriptFetchError means the player script itself could not be downloaded.
type ScriptFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ScriptFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch player script %s: status=%d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch player script %s: %v", e.URL, e.Err)
}

func (e *ScriptFetchError) Unwrap() error {
	return e.Err
}
