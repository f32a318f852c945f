package formats

import (
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type mpd struct {
	BaseURL string      `xml:"BaseURL"`
	Periods []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	BaseURL        string             `xml:"BaseURL"`
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	MimeType        string              `xml:"mimeType,attr"`
	ContentType     string              `xml:"contentType,attr"`
	Codecs          string              `xml:"codecs,attr"`
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID                string `xml:"id,attr"`
	Bandwidth         int    `xml:"bandwidth,attr"`
	Width             int    `xml:"width,attr"`
	Height            int    `xml:"height,attr"`
	FrameRate         string `xml:"frameRate,attr"`
	AudioSamplingRate string `xml:"audioSamplingRate,attr"`
	MimeType          string `xml:"mimeType,attr"`
	Codecs            string `xml:"codecs,attr"`
	BaseURL           string `xml:"BaseURL"`
}

// ParseDASHManifest lists the representations of an MPD document.
func ParseDASHManifest(raw, manifestURL string) ([]Format, error) {
	var doc mpd
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse dash manifest: %w", err)
	}

	var out []Format
	for _, period := range doc.Periods {
		base := manifestURL
		if doc.BaseURL != "" {
			base = resolveReference(base, doc.BaseURL)
		}
		if period.BaseURL != "" {
			base = resolveReference(base, period.BaseURL)
		}
		for _, set := range period.AdaptationSets {
			for _, rep := range set.Representations {
				mime := firstNonEmpty(rep.MimeType, set.MimeType)
				codecs := firstNonEmpty(rep.Codecs, set.Codecs)
				f := Format{
					URL:      resolveReference(base, rep.BaseURL),
					MimeType: mime,
					Bitrate:  rep.Bandwidth,
					Width:    rep.Width,
					Height:   rep.Height,
					FPS:      parseFrameRate(rep.FrameRate),
					Protocol: ProtocolDASH,
				}
				if codecs != "" {
					f.MimeType = mime + `; codecs="` + codecs + `"`
				}
				applyMime(&f)
				if strings.EqualFold(set.ContentType, "audio") {
					f.HasAudio, f.HasVideo = true, false
				}
				f.Itag, _ = strconv.Atoi(rep.ID)
				if f.Itag == 0 {
					f.Itag = ItagFromURL(f.URL)
				}
				f.AudioSampleRate, _ = strconv.Atoi(rep.AudioSamplingRate)
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// parseFrameRate accepts "30" and "30000/1001".
func parseFrameRate(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if num, den, ok := strings.Cut(v, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return int(math.Round(n / d))
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(f))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
