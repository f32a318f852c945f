package client

import (
	"strings"

	"github.com/famomatic/ytcipher/internal/formats"
)

// SelectionMode controls how a downloadable format is chosen when itag is not forced.
type SelectionMode string

const (
	SelectionModeBest      SelectionMode = "best"
	SelectionModeMP4AV     SelectionMode = "mp4av"
	SelectionModeVideoOnly SelectionMode = "videoonly"
	SelectionModeAudioOnly SelectionMode = "audioonly"
)

func normalizeSelectionMode(mode SelectionMode) SelectionMode {
	switch SelectionMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case SelectionModeMP4AV:
		return SelectionModeMP4AV
	case SelectionModeVideoOnly:
		return SelectionModeVideoOnly
	case SelectionModeAudioOnly:
		return SelectionModeAudioOnly
	}
	return SelectionModeBest
}

// selectDownloadFormat picks among progressive https formats. The list is
// sorted best first, so the first match wins.
func selectDownloadFormat(list []FormatInfo, itag int, mode SelectionMode) (FormatInfo, bool) {
	if itag != 0 {
		for _, f := range list {
			if f.Itag == itag && f.Protocol == formats.ProtocolHTTPS {
				return f, true
			}
		}
		return FormatInfo{}, false
	}

	mode = normalizeSelectionMode(mode)
	if mode == SelectionModeBest {
		// Muxed, then video, then audio, then anything.
		for _, match := range []func(FormatInfo) bool{
			FormatInfo.Muxed,
			func(f FormatInfo) bool { return f.HasVideo },
			func(f FormatInfo) bool { return f.HasAudio },
			func(FormatInfo) bool { return true },
		} {
			for _, f := range list {
				if f.Protocol == formats.ProtocolHTTPS && match(f) {
					return f, true
				}
			}
		}
		return FormatInfo{}, false
	}

	for _, f := range list {
		if f.Protocol == formats.ProtocolHTTPS && matchesSelectionMode(f, mode) {
			return f, true
		}
	}
	return FormatInfo{}, false
}

func matchesSelectionMode(f FormatInfo, mode SelectionMode) bool {
	switch mode {
	case SelectionModeMP4AV:
		return f.Muxed() && f.Container == "mp4"
	case SelectionModeVideoOnly:
		return f.HasVideo && !f.HasAudio
	case SelectionModeAudioOnly:
		return f.HasAudio && !f.HasVideo
	}
	return true
}
