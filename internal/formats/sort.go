package formats

import (
	"sort"
	"strconv"
	"strings"
)

// SortByBest orders formats best first: progressive HTTPS before manifest
// entries, known size, muxed before video-only before audio-only, then
// resolution and bitrates. Ties keep their input order.
func SortByBest(formats []Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		a, b := rankKey(formats[i]), rankKey(formats[j])
		for k := range a {
			if a[k] != b[k] {
				return a[k] > b[k]
			}
		}
		return false
	})
}

func rankKey(f Format) [7]int {
	return [7]int{
		boolRank(f.Protocol != ProtocolHLS),
		boolRank(f.Protocol != ProtocolDASH),
		boolRank(f.ContentLength > 0),
		boolRank(f.HasVideo && f.HasAudio),
		boolRank(f.HasVideo),
		labelHeight(f),
		bitrate(f),
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func labelHeight(f Format) int {
	if f.Height > 0 {
		return f.Height
	}
	label := f.QualityLabel
	if i := strings.IndexByte(label, 'p'); i > 0 {
		label = label[:i]
	}
	n, _ := strconv.Atoi(label)
	return n
}

func bitrate(f Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}

// Best picks muxed, then video-only, then audio-only, then the first format.
// formats are expected to be sorted.
func Best(formats []Format) (Format, bool) {
	if len(formats) == 0 {
		return Format{}, false
	}
	for _, pick := range []func(Format) bool{
		func(f Format) bool { return f.HasVideo && f.HasAudio },
		func(f Format) bool { return f.HasVideo },
		func(f Format) bool { return f.HasAudio },
	} {
		for _, f := range formats {
			if pick(f) {
				return f, true
			}
		}
	}
	return formats[0], true
}
