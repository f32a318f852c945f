package client

import (
	"strconv"

	"github.com/famomatic/ytcipher/internal/formats"
	"github.com/famomatic/ytcipher/internal/orchestrator"
)

// VideoInfo is the package-level metadata result.
type VideoInfo struct {
	ID          string
	Title       string
	Author      string
	ChannelID   string
	Description string
	DurationSec int64
	ViewCount   int64
	IsLive      bool
	PublishDate string
	UploadDate  string
	Category    string

	PlayerURL          string
	SignatureTimestamp int
	DashManifestURL    string
	HLSManifestURL     string

	// Formats are sorted best first.
	Formats []FormatInfo
	Best    FormatInfo
	// Clients lists the clients whose formats were merged.
	Clients []string
}

// FormatInfo is the normalized public format model.
type FormatInfo struct {
	Itag          int
	URL           string
	MimeType      string
	Container     string
	Codecs        []string
	HasAudio      bool
	HasVideo      bool
	Bitrate       int
	Width         int
	Height        int
	FPS           int
	Quality       string
	QualityLabel  string
	AudioQuality  string
	ContentLength int64
	// Protocol is "https", "dash" or "hls".
	Protocol     string
	SourceClient string
}

// Muxed reports whether the format carries both audio and video.
func (f FormatInfo) Muxed() bool {
	return f.HasAudio && f.HasVideo
}

func toFormatInfo(f formats.Format) FormatInfo {
	return FormatInfo{
		Itag:          f.Itag,
		URL:           f.URL,
		MimeType:      f.MimeType,
		Container:     f.Container,
		Codecs:        append([]string(nil), f.Codecs...),
		HasAudio:      f.HasAudio,
		HasVideo:      f.HasVideo,
		Bitrate:       f.Bitrate,
		Width:         f.Width,
		Height:        f.Height,
		FPS:           f.FPS,
		Quality:       f.Quality,
		QualityLabel:  f.QualityLabel,
		AudioQuality:  f.AudioQuality,
		ContentLength: f.ContentLength,
		Protocol:      f.Protocol,
		SourceClient:  f.SourceClient,
	}
}

func toVideoInfo(in *orchestrator.VideoInfo) *VideoInfo {
	d, m := in.Details, in.Microformat.PlayerMicroformatRenderer
	out := &VideoInfo{
		ID:                 firstNonEmptyString(d.VideoID, in.VideoID),
		Title:              d.Title,
		Author:             d.Author,
		ChannelID:          d.ChannelID,
		Description:        d.ShortDescription,
		DurationSec:        parseInt64String(d.LengthSeconds),
		ViewCount:          parseInt64String(d.ViewCount),
		IsLive:             d.IsLiveContent,
		PublishDate:        m.PublishDate,
		UploadDate:         m.UploadDate,
		Category:           m.Category,
		PlayerURL:          in.PlayerURL,
		SignatureTimestamp: in.SignatureTimestamp,
		DashManifestURL:    in.DashManifestURL,
		HLSManifestURL:     in.HlsManifestURL,
		Best:               toFormatInfo(in.Best),
		Clients:            append([]string(nil), in.Clients...),
	}
	out.Formats = make([]FormatInfo, 0, len(in.Formats))
	for _, f := range in.Formats {
		out.Formats = append(out.Formats, toFormatInfo(f))
	}
	return out
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInt64String(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
