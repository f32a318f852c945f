package orchestrator

import (
	"fmt"
	"strings"

	"github.com/famomatic/ytcipher/internal/types"
)

// AttemptError captures one client attempt failure.
type AttemptError struct {
	Client string
	Err    error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("client %s: %v", e.Client, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// NoPlayableFormatsError is returned when no format survived resolution.
// It aggregates the failed client attempts and any shared script failure.
type NoPlayableFormatsError struct {
	VideoID   string
	Attempts  []AttemptError
	Rejected  int
	ScriptErr error
}

func (e *NoPlayableFormatsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no playable formats for video=%s", e.VideoID)
	if len(e.Attempts) > 0 {
		fmt.Fprintf(&b, ": %d client attempt(s) failed", len(e.Attempts))
	}
	if e.Rejected > 0 {
		fmt.Fprintf(&b, ", %d format(s) unresolved", e.Rejected)
	}
	if e.ScriptErr != nil {
		fmt.Fprintf(&b, ", player script: %v", e.ScriptErr)
	}
	return b.String()
}

func (e *NoPlayableFormatsError) Unwrap() []error {
	out := []error{types.ErrNoPlayableFormats}
	for i := range e.Attempts {
		out = append(out, &e.Attempts[i])
	}
	if e.ScriptErr != nil {
		out = append(out, e.ScriptErr)
	}
	return out
}

// HTTPStatusError indicates a non-200 player API response.
type HTTPStatusError struct {
	Client     string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("innertube http status=%d client=%s", e.StatusCode, e.Client)
}

// MalformedResponseError indicates a player response for another video.
type MalformedResponseError struct {
	Client  string
	VideoID string
	Got     string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed player response client=%s: videoId=%q, want %q", e.Client, e.Got, e.VideoID)
}

// PlayabilityError indicates an unplayable player response.
type PlayabilityError struct {
	Client string
	Status string
	Reason string
}

func (e *PlayabilityError) Error() string {
	return fmt.Sprintf("unplayable status=%s client=%s reason=%s", e.Status, e.Client, e.Reason)
}

// Unwrap classifies the status as types.ErrLoginRequired,
// types.ErrAgeRestricted or types.ErrVideoUnavailable. Other statuses
// unwrap to nil.
func (e *PlayabilityError) Unwrap() error {
	switch {
	case e.RequiresLogin():
		return types.ErrLoginRequired
	case e.IsAgeRestricted():
		return types.ErrAgeRestricted
	case e.IsUnavailable() || e.IsGeoRestricted():
		return types.ErrVideoUnavailable
	}
	return nil
}

func (e *PlayabilityError) RequiresLogin() bool {
	s := strings.ToUpper(e.Status + " " + e.Reason)
	return strings.Contains(s, "LOGIN") || strings.Contains(s, "SIGN IN")
}

func (e *PlayabilityError) IsAgeRestricted() bool {
	s := strings.ToUpper(e.Status + " " + e.Reason)
	return strings.Contains(s, "AGE")
}

func (e *PlayabilityError) IsGeoRestricted() bool {
	s := strings.ToUpper(e.Status + " " + e.Reason)
	return strings.Contains(s, "COUNTRY") ||
		strings.Contains(s, "REGION") ||
		strings.Contains(s, "LOCATION")
}

func (e *PlayabilityError) IsUnavailable() bool {
	s := strings.ToUpper(e.Status + " " + e.Reason)
	return strings.Contains(s, "UNAVAILABLE") ||
		strings.Contains(s, "PRIVATE") ||
		strings.Contains(s, "DELETED") ||
		e.Status == "ERROR"
}
