package formats

import (
	"fmt"
	"math"

	"github.com/etherlabsio/go-m3u8/m3u8"
)

// ParseHLSManifest lists the variant streams and audio renditions of a
// master playlist.
func ParseHLSManifest(raw, manifestURL string) ([]Format, error) {
	playlist, err := m3u8.ReadString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse hls manifest: %w", err)
	}

	var out []Format
	for _, item := range playlist.Items {
		switch it := item.(type) {
		case *m3u8.PlaylistItem:
			f := Format{
				URL:      resolveReference(manifestURL, it.URI),
				Bitrate:  it.Bandwidth,
				Protocol: ProtocolHLS,
				MimeType: "video/mp2t",
			}
			if it.AverageBandwidth != nil {
				f.AverageBitrate = *it.AverageBandwidth
			}
			if it.Resolution != nil {
				f.Width, f.Height = it.Resolution.Width, it.Resolution.Height
			}
			if it.FrameRate != nil {
				f.FPS = int(math.Round(*it.FrameRate))
			}
			if it.Codecs != nil {
				f.MimeType += `; codecs="` + *it.Codecs + `"`
			}
			applyMime(&f)
			f.HasVideo = true
			f.Itag = ItagFromURL(f.URL)
			out = append(out, f)
		case *m3u8.MediaItem:
			if it.Type != "AUDIO" || it.URI == nil {
				continue
			}
			f := Format{
				URL:      resolveReference(manifestURL, *it.URI),
				MimeType: "audio/mp2t",
				HasAudio: true,
				Protocol: ProtocolHLS,
			}
			applyMime(&f)
			f.Itag = ItagFromURL(f.URL)
			out = append(out, f)
		}
	}
	return out, nil
}
