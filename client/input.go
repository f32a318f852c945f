package client

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeIDPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	videoPathPattern = regexp.MustCompile(`^/(?:shorts|embed|v|live)/([0-9A-Za-z_-]{11})`)
)

// InvalidInputDetailError explains why an input was rejected.
type InvalidInputDetailError struct {
	Input  string
	Reason string
}

func (e *InvalidInputDetailError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

func (e *InvalidInputDetailError) Unwrap() error {
	return ErrInvalidInput
}

func invalidInput(input, reason string) error {
	return &InvalidInputDetailError{Input: input, Reason: reason}
}

// ExtractVideoID accepts either a raw id or common YouTube URL shapes.
func ExtractVideoID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", invalidInput(input, "empty")
	}
	if youtubeIDPattern.MatchString(s) {
		return s, nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", invalidInput(input, "malformed_url")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be":
		if id := strings.Trim(u.Path, "/"); youtubeIDPattern.MatchString(id) {
			return id, nil
		}
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com") || host == "youtube-nocookie.com":
		if id := u.Query().Get("v"); youtubeIDPattern.MatchString(id) {
			return id, nil
		}
		if m := videoPathPattern.FindStringSubmatch(u.Path); m != nil {
			return m[1], nil
		}
	default:
		return "", invalidInput(input, "unsupported_host")
	}
	return "", invalidInput(input, "missing_video_id")
}
