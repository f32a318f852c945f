package innertube

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// PlayerResponse is the top-level response from the /player endpoint.
type PlayerResponse struct {
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     StreamingData     `json:"streamingData"`
	VideoDetails      VideoDetails      `json:"videoDetails"`
	Microformat       Microformat       `json:"microformat"`
}

type PlayabilityStatus struct {
	Status            string             `json:"status"`
	Reason            string             `json:"reason"`
	PlayableInEmbed   bool               `json:"playableInEmbed"`
	LiveStreamability *LiveStreamability `json:"liveStreamability"`
}

// IsOK reports whether the status can carry formats. Live streams answer
// with OK as well.
func (p *PlayabilityStatus) IsOK() bool {
	return statusOK(p.Status)
}

func statusOK(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "OK")
}

func (p *PlayabilityStatus) IsLive() bool {
	return p.LiveStreamability != nil
}

type LiveStreamability struct {
	LiveStreamabilityRenderer struct {
		VideoID     string `json:"videoId"`
		PollDelayMs string `json:"pollDelayMs"`
	} `json:"liveStreamabilityRenderer"`
}

type StreamingData struct {
	ExpiresInSeconds string    `json:"expiresInSeconds"`
	Formats          []*Format `json:"formats"`
	AdaptiveFormats  []*Format `json:"adaptiveFormats"`
	DashManifestURL  string    `json:"dashManifestUrl"`
	HlsManifestURL   string    `json:"hlsManifestUrl"`
}

// Format is one raw stream descriptor. URL is empty until the descriptor has
// been resolved when a cipher field is present.
type Format struct {
	Itag             int    `json:"itag"`
	URL              string `json:"url,omitempty"`
	MimeType         string `json:"mimeType"`
	Bitrate          int    `json:"bitrate,omitempty"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
	FPS              int    `json:"fps,omitempty"`
	InitRange        *Range `json:"initRange,omitempty"`
	IndexRange       *Range `json:"indexRange,omitempty"`
	LastModified     string `json:"lastModified,omitempty"`
	ContentLength    string `json:"contentLength,omitempty"`
	Quality          string `json:"quality,omitempty"`
	QualityLabel     string `json:"qualityLabel,omitempty"`
	AverageBitrate   int    `json:"averageBitrate,omitempty"`
	AudioQuality     string `json:"audioQuality,omitempty"`
	ApproxDurationMs string `json:"approxDurationMs,omitempty"`
	AudioSampleRate  string `json:"audioSampleRate,omitempty"`
	AudioChannels    int    `json:"audioChannels,omitempty"`
	SignatureCipher  string `json:"signatureCipher,omitempty"`
	Cipher           string `json:"cipher,omitempty"`
	// S and SP are the unwrapped cipher fields some responses carry directly.
	S  string `json:"s,omitempty"`
	SP string `json:"sp,omitempty"`

	// Manifest marks formats discovered in a DASH or HLS manifest.
	Manifest string `json:"-"`
	// SourceClient is the client whose response carried the format.
	SourceClient string `json:"-"`
	// Resolved and ResolveErr record the single resolution transition.
	Resolved   bool  `json:"-"`
	ResolveErr error `json:"-"`
}

// NeedsResolution reports whether the format carries any cipher field.
func (f *Format) NeedsResolution() bool {
	return f.SignatureCipher != "" || f.Cipher != "" || f.S != ""
}

type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type VideoDetails struct {
	VideoID          string           `json:"videoId"`
	Title            string           `json:"title"`
	LengthSeconds    string           `json:"lengthSeconds"`
	ChannelID        string           `json:"channelId"`
	ShortDescription string           `json:"shortDescription"`
	Thumbnail        ThumbnailDetails `json:"thumbnail"`
	ViewCount        string           `json:"viewCount"`
	Author           string           `json:"author"`
	IsLiveContent    bool             `json:"isLiveContent"`
}

type ThumbnailDetails struct {
	Thumbnails []Thumbnail `json:"thumbnails"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Microformat struct {
	PlayerMicroformatRenderer struct {
		PublishDate string `json:"publishDate"`
		UploadDate  string `json:"uploadDate"`
		Category    string `json:"category"`
	} `json:"playerMicroformatRenderer"`
}

// Probe is a cheap read of the fields checked before a full decode.
type Probe struct {
	Status      string
	Reason      string
	VideoID     string
	VisitorData string
}

// IsOK applies the same check as PlayabilityStatus.IsOK.
func (p Probe) IsOK() bool {
	return statusOK(p.Status)
}

// ProbeResponse reads playability, video id and visitor data without
// decoding the whole body.
func ProbeResponse(body []byte) Probe {
	res := gjson.GetManyBytes(body,
		"playabilityStatus.status",
		"playabilityStatus.reason",
		"videoDetails.videoId",
		"responseContext.visitorData",
	)
	p := Probe{
		Status:      res[0].String(),
		Reason:      res[1].String(),
		VideoID:     res[2].String(),
		VisitorData: res[3].String(),
	}
	if p.Reason == "" {
		p.Reason = gjson.GetBytes(body, "playabilityStatus.messages.0").String()
	}
	if p.VisitorData == "" {
		gjson.GetBytes(body, "responseContext.serviceTrackingParams").ForEach(func(_, svc gjson.Result) bool {
			if svc.Get("service").String() != "GFEEDBACK" {
				return true
			}
			svc.Get("params").ForEach(func(_, kv gjson.Result) bool {
				if kv.Get("key").String() == "visitor_data" {
					p.VisitorData = kv.Get("value").String()
					return false
				}
				return true
			})
			return false
		})
	}
	return p
}

// DecodePlayerResponse decodes body and tags every format with client.
func DecodePlayerResponse(body []byte, client string) (*PlayerResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid player response json (%d bytes)", len(body))
	}
	var resp PlayerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	for _, f := range resp.StreamingData.Formats {
		f.SourceClient = client
	}
	for _, f := range resp.StreamingData.AdaptiveFormats {
		f.SourceClient = client
	}
	return &resp, nil
}

// AllFormats returns muxed formats followed by adaptive ones.
func (r *PlayerResponse) AllFormats() []*Format {
	out := make([]*Format, 0, len(r.StreamingData.Formats)+len(r.StreamingData.AdaptiveFormats))
	for _, f := range r.StreamingData.Formats {
		if f != nil {
			out = append(out, f)
		}
	}
	for _, f := range r.StreamingData.AdaptiveFormats {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
