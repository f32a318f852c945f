package formats

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/famomatic/ytcipher/internal/innertube"
)

const (
	ProtocolHTTPS = "https"
	ProtocolDASH  = "dash"
	ProtocolHLS   = "hls"
)

// Format is a stream descriptor with the fields derived from its mime type.
type Format struct {
	Itag             int
	URL              string
	MimeType         string
	Container        string
	Codecs           []string
	HasVideo         bool
	HasAudio         bool
	Bitrate          int
	AverageBitrate   int
	Width            int
	Height           int
	FPS              int
	Quality          string
	QualityLabel     string
	AudioQuality     string
	AudioSampleRate  int
	AudioChannels    int
	ApproxDurationMs int64
	ContentLength    int64
	InitRange        *Range
	IndexRange       *Range
	Protocol         string
	SourceClient     string
	Ciphered         bool
}

type Range struct {
	Start int64
	End   int64
}

var (
	mimeRe    = regexp.MustCompile(`^(\w+)/([\w.+-]+)(?:;\s*codecs="([^"]*)")?`)
	labelFPS  = regexp.MustCompile(`p(\d+)`)
	itagInURL = regexp.MustCompile(`/itag/(\d+)`)
)

// FromRaw derives a Format from a raw descriptor.
func FromRaw(f *innertube.Format) Format {
	out := Format{
		Itag:           f.Itag,
		URL:            f.URL,
		MimeType:       f.MimeType,
		Bitrate:        f.Bitrate,
		AverageBitrate: f.AverageBitrate,
		Width:          f.Width,
		Height:         f.Height,
		FPS:            f.FPS,
		Quality:        f.Quality,
		QualityLabel:   f.QualityLabel,
		AudioQuality:   f.AudioQuality,
		AudioChannels:  f.AudioChannels,
		Protocol:       ProtocolHTTPS,
		SourceClient:   f.SourceClient,
		Ciphered:       f.NeedsResolution(),
		InitRange:      parseRange(f.InitRange),
		IndexRange:     parseRange(f.IndexRange),
	}
	if f.Manifest != "" {
		out.Protocol = f.Manifest
	}
	applyMime(&out)
	if out.FPS == 0 {
		if m := labelFPS.FindStringSubmatch(f.QualityLabel); m != nil {
			out.FPS, _ = strconv.Atoi(m[1])
		}
	}
	out.AudioSampleRate, _ = strconv.Atoi(f.AudioSampleRate)
	out.ApproxDurationMs, _ = strconv.ParseInt(f.ApproxDurationMs, 10, 64)
	out.ContentLength, _ = strconv.ParseInt(f.ContentLength, 10, 64)
	return out
}

// Parse derives formats from every descriptor of resp, muxed first.
func Parse(resp *innertube.PlayerResponse) []Format {
	raw := resp.AllFormats()
	out := make([]Format, 0, len(raw))
	for _, f := range raw {
		out = append(out, FromRaw(f))
	}
	return out
}

func applyMime(f *Format) {
	m := mimeRe.FindStringSubmatch(strings.TrimSpace(f.MimeType))
	if m == nil {
		return
	}
	kind := strings.ToLower(m[1])
	f.Container = strings.ToLower(m[2])
	for _, c := range strings.Split(m[3], ",") {
		if c = strings.TrimSpace(c); c != "" {
			f.Codecs = append(f.Codecs, c)
		}
	}
	switch kind {
	case "video":
		f.HasVideo = true
		// Muxed formats list an audio codec after the video codec.
		f.HasAudio = len(f.Codecs) > 1
	case "audio":
		f.HasAudio = true
	}
}

func parseRange(r *innertube.Range) *Range {
	if r == nil {
		return nil
	}
	start, _ := strconv.ParseInt(r.Start, 10, 64)
	end, _ := strconv.ParseInt(r.End, 10, 64)
	return &Range{Start: start, End: end}
}

// ItagFromURL reads the itag of a manifest entry from its path or query.
func ItagFromURL(rawURL string) int {
	if m := itagInURL.FindStringSubmatch(rawURL); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if i := strings.Index(rawURL, "itag="); i >= 0 {
		v := rawURL[i+len("itag="):]
		if j := strings.IndexAny(v, "&/"); j >= 0 {
			v = v[:j]
		}
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
