package innertube

import (
	"context"
	"net/http"
)

// PoTokenProvider supplies proof-of-origin tokens per client.
type PoTokenProvider interface {
	GetToken(ctx context.Context, clientID string) (string, error)
}

// ClientProfile describes one simulated device client.
type ClientProfile struct {
	// ID is the registry alias used in configuration (e.g. "android_vr"),
	// distinct from the Innertube clientName ("ANDROID_VR").
	ID            string
	Name          string
	Version       string
	UserAgent     string
	ContextNameID int
	Host          string
	Headers       http.Header
	Screen        string // e.g. "EMBED"

	OSName            string
	OSVersion         string
	DeviceMake        string
	DeviceModel       string
	Platform          string
	AndroidSDKVersion int
	// TimeZone is an IANA zone name; utcOffsetMinutes is derived from it.
	// Empty means UTC.
	TimeZone string

	SupportsCookies bool
	// RequireJSPlayer marks clients whose formats carry ciphered URLs.
	RequireJSPlayer bool
	// PoTokenRecommended marks clients that should send a PO token when one
	// is available.
	PoTokenRecommended bool
}

type Registry interface {
	Get(id string) (ClientProfile, bool)
	All() []ClientProfile
}
