package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// PlayerEndpoint is the player API the simulated clients post to.
const PlayerEndpoint = "https://youtubei.googleapis.com/youtubei/v1/player"

type PlayerRequest struct {
	Context                    Context                     `json:"context"`
	VideoID                    string                      `json:"videoId"`
	CPN                        string                      `json:"cpn,omitempty"`
	ContentCheckOk             bool                        `json:"contentCheckOk,omitempty"`
	RacyCheckOk                bool                        `json:"racyCheckOk,omitempty"`
	Params                     string                      `json:"params,omitempty"`
	PlaybackContext            *PlaybackContext            `json:"playbackContext,omitempty"`
	ServiceIntegrityDimensions *ServiceIntegrityDimensions `json:"serviceIntegrityDimensions,omitempty"`
}

type Context struct {
	Client     ClientInfo      `json:"client"`
	User       UserContext     `json:"user"`
	ThirdParty *ThirdParty     `json:"thirdParty,omitempty"`
	Request    *RequestContext `json:"request,omitempty"`
}

type ClientInfo struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	DeviceMake        string `json:"deviceMake,omitempty"`
	DeviceModel       string `json:"deviceModel,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
	OsName            string `json:"osName,omitempty"`
	OsVersion         string `json:"osVersion,omitempty"`
	Platform          string `json:"platform,omitempty"`
	AcceptLanguage    string `json:"hl"`
	GL                string `json:"gl,omitempty"`
	TimeZone          string `json:"timeZone"`
	UtcOffsetMinutes  int    `json:"utcOffsetMinutes"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	VisitorData       string `json:"visitorData,omitempty"`
}

type UserContext struct {
	LockedSafetyMode bool `json:"lockedSafetyMode"`
}

type ThirdParty struct {
	EmbedUrl string `json:"embedUrl"`
}

type RequestContext struct {
	UseSsl                  bool     `json:"useSsl"`
	InternalExperimentFlags []string `json:"internalExperimentFlags"`
}

type PlaybackContext struct {
	ContentPlaybackContext ContentPlaybackContext `json:"contentPlaybackContext"`
}

type ContentPlaybackContext struct {
	HTML5Preference    string `json:"html5Preference"`
	SignatureTimestamp int    `json:"signatureTimestamp,omitempty"`
}

type ServiceIntegrityDimensions struct {
	PoToken string `json:"poToken,omitempty"`
}

// PlayerRequestOptions carries per-request values that do not come from the
// client profile.
type PlayerRequestOptions struct {
	VisitorData        string
	SignatureTimestamp int
	PoToken            string
	PlayerParams       string
}

func NewPlayerRequest(profile ClientProfile, videoID string, opts ...PlayerRequestOptions) *PlayerRequest {
	var o PlayerRequestOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	tz, offset := zoneOffset(profile.TimeZone, time.Now())
	req := &PlayerRequest{
		VideoID:        videoID,
		CPN:            Nonce(16),
		ContentCheckOk: true,
		RacyCheckOk:    true,
		Params:         o.PlayerParams,
		Context: Context{
			Client: ClientInfo{
				ClientName:        profile.Name,
				ClientVersion:     profile.Version,
				DeviceMake:        profile.DeviceMake,
				DeviceModel:       profile.DeviceModel,
				UserAgent:         profile.UserAgent,
				OsName:            profile.OSName,
				OsVersion:         profile.OSVersion,
				Platform:          profile.Platform,
				AcceptLanguage:    "en",
				TimeZone:          tz,
				UtcOffsetMinutes:  offset,
				AndroidSdkVersion: profile.AndroidSDKVersion,
				VisitorData:       o.VisitorData,
			},
			Request: &RequestContext{UseSsl: true, InternalExperimentFlags: []string{}},
		},
	}
	if profile.Platform == "MOBILE" {
		req.Context.Client.GL = "US"
	}
	if profile.Screen == "EMBED" {
		req.Context.ThirdParty = &ThirdParty{
			EmbedUrl: "https://www.youtube.com/watch?v=" + videoID,
		}
	}
	if profile.RequireJSPlayer || o.SignatureTimestamp > 0 {
		req.PlaybackContext = &PlaybackContext{
			ContentPlaybackContext: ContentPlaybackContext{
				HTML5Preference:    "HTML5_PREF_WANTS",
				SignatureTimestamp: o.SignatureTimestamp,
			},
		}
	}
	req.SetPoToken(o.PoToken)
	return req
}

func (r *PlayerRequest) SetPoToken(token string) {
	if token == "" {
		return
	}
	r.ServiceIntegrityDimensions = &ServiceIntegrityDimensions{PoToken: token}
}

func MarshalRequest(req *PlayerRequest) ([]byte, error) {
	return json.Marshal(req)
}

// PlayerURL returns the endpoint URL for one request, with a fresh 12-char
// nonce in t.
func PlayerURL(endpoint, videoID string) string {
	if endpoint == "" {
		endpoint = PlayerEndpoint
	}
	q := url.Values{}
	q.Set("prettyPrint", "false")
	q.Set("t", Nonce(12))
	q.Set("id", videoID)
	return endpoint + "?" + q.Encode()
}

// NewHTTPRequest builds the POST for req. extra headers (cookies, auth) are
// added after the client headers.
func NewHTTPRequest(ctx context.Context, endpoint string, profile ClientProfile, req *PlayerRequest, extra http.Header) (*http.Request, error) {
	body, err := MarshalRequest(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, PlayerURL(endpoint, req.VideoID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	host := profile.Host
	if host == "" {
		host = defaultHost
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", profile.UserAgent)
	httpReq.Header.Set("Accept-Encoding", "gzip, br")
	httpReq.Header.Set("Origin", "https://"+host)
	httpReq.Header.Set("Referer", "https://"+host+"/watch?v="+req.VideoID)
	httpReq.Header.Set("X-Goog-Api-Format-Version", "2")
	if profile.ContextNameID > 0 {
		httpReq.Header.Set("X-YouTube-Client-Name", strconv.Itoa(profile.ContextNameID))
	}
	httpReq.Header.Set("X-YouTube-Client-Version", profile.Version)
	if v := req.Context.Client.VisitorData; v != "" {
		httpReq.Header.Set("X-Goog-Visitor-Id", v)
	}
	for k, values := range profile.Headers {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	for k, values := range extra {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	return httpReq, nil
}

// zoneOffset returns tz and its offset in minutes at now. Unknown or empty
// zones fall back to UTC so the two request fields always agree.
func zoneOffset(tz string, now time.Time) (string, int) {
	if tz == "" {
		return "UTC", 0
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "UTC", 0
	}
	_, sec := now.In(loc).Zone()
	return tz, sec / 60
}
