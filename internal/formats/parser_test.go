package formats

import (
	"testing"

	"github.com/famomatic/ytcipher/internal/innertube"
)

func TestParse_NormalizesFormatsDeterministically(t *testing.T) {
	resp := &innertube.PlayerResponse{
		PlayabilityStatus: innertube.PlayabilityStatus{Status: "OK"},
		StreamingData: innertube.StreamingData{
			Formats: []*innertube.Format{
				{
					Itag:             18,
					URL:              "https://example.com/v.mp4",
					MimeType:         `video/mp4; codecs="avc1.42001E, mp4a.40.2"`,
					Bitrate:          500000,
					Width:            640,
					Height:           360,
					FPS:              30,
					AudioSampleRate:  "44100",
					AudioChannels:    2,
					ApproxDurationMs: "213341",
					ContentLength:    "3792299",
					InitRange:        &innertube.Range{Start: "0", End: "731"},
					IndexRange:       &innertube.Range{Start: "732", End: "1200"},
				},
			},
			AdaptiveFormats: []*innertube.Format{
				{
					Itag:             251,
					MimeType:         `audio/webm; codecs="opus"`,
					SignatureCipher:  "url=https%3A%2F%2Fexample.com%2Fa.webm&sp=sig&s=encrypted",
					ApproxDurationMs: "213341",
				},
			},
		},
	}

	out := Parse(resp)
	if len(out) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(out))
	}

	prog := out[0]
	if prog.Itag != 18 {
		t.Fatalf("itag mismatch: got=%d", prog.Itag)
	}
	if prog.Container != "mp4" {
		t.Fatalf("container mismatch: got=%q", prog.Container)
	}
	if prog.FPS != 30 {
		t.Fatalf("fps mismatch: got=%d", prog.FPS)
	}
	if prog.AudioSampleRate != 44100 {
		t.Fatalf("audio sample rate mismatch: got=%d", prog.AudioSampleRate)
	}
	if prog.ContentLength != 3792299 {
		t.Fatalf("content length mismatch: got=%d", prog.ContentLength)
	}
	if prog.InitRange == nil || prog.IndexRange == nil {
		t.Fatal("expected init/index ranges")
	}
	if !prog.HasAudio || !prog.HasVideo {
		t.Fatalf("expected progressive format to have both tracks: %+v", prog)
	}
	if prog.Ciphered {
		t.Fatal("expected progressive format not to be ciphered")
	}

	audioOnly := out[1]
	if audioOnly.Itag != 251 {
		t.Fatalf("itag mismatch: got=%d", audioOnly.Itag)
	}
	if !audioOnly.HasAudio || audioOnly.HasVideo {
		t.Fatalf("expected audio-only adaptive format, got hasAudio=%v hasVideo=%v", audioOnly.HasAudio, audioOnly.HasVideo)
	}
	if !audioOnly.Ciphered {
		t.Fatal("expected ciphered flag to be true for signatureCipher-only format")
	}
	if audioOnly.Protocol != "https" {
		t.Fatalf("protocol mismatch: got=%q", audioOnly.Protocol)
	}
}

func TestParse_MissingAndInvalidFields(t *testing.T) {
	resp := &innertube.PlayerResponse{
		StreamingData: innertube.StreamingData{
			AdaptiveFormats: []*innertube.Format{
				{
					Itag:             140,
					URL:              "",
					MimeType:         `audio/mp4; codecs="mp4a.40.2"`,
					AudioSampleRate:  "not-a-number",
					ApproxDurationMs: "bad",
					ContentLength:    "bad",
					InitRange:        &innertube.Range{Start: "bad", End: "value"},
					Cipher:           "url=https%3A%2F%2Fexample.com%2Fa.m4a&s=enc",
				},
			},
		},
	}

	out := Parse(resp)
	if len(out) != 1 {
		t.Fatalf("expected 1 format, got %d", len(out))
	}

	f := out[0]
	if f.AudioSampleRate != 0 || f.ApproxDurationMs != 0 || f.ContentLength != 0 {
		t.Fatalf("expected invalid numeric fields to normalize to zero: %+v", f)
	}
	if f.InitRange == nil {
		t.Fatal("expected init range pointer to be present")
	}
	if f.InitRange.Start != 0 || f.InitRange.End != 0 {
		t.Fatalf("expected invalid range values to normalize to zero: %+v", f.InitRange)
	}
	if !f.Ciphered {
		t.Fatal("expected ciphered flag true when url is empty and cipher is present")
	}
	if !f.HasAudio || f.HasVideo {
		t.Fatalf("expected audio-only flags from mime+codec: hasAudio=%v hasVideo=%v", f.HasAudio, f.HasVideo)
	}
}

func TestParse_FPSFromQualityLabel(t *testing.T) {
	f := FromRaw(&innertube.Format{Itag: 299, MimeType: `video/mp4; codecs="avc1.64002a"`, QualityLabel: "1080p60"})
	if f.FPS != 60 {
		t.Fatalf("fps = %d, want 60", f.FPS)
	}
	if f.HasAudio || !f.HasVideo {
		t.Fatalf("expected video-only flags: %+v", f)
	}
	if len(f.Codecs) != 1 || f.Codecs[0] != "avc1.64002a" {
		t.Fatalf("codecs = %v", f.Codecs)
	}
}

func TestSortByBestIsStable(t *testing.T) {
	in := []Format{
		{Itag: 140, HasAudio: true, Bitrate: 128000, ContentLength: 10},
		{Itag: 18, HasAudio: true, HasVideo: true, Height: 360, ContentLength: 10},
		{Itag: 137, HasVideo: true, Height: 1080, ContentLength: 10},
		{Itag: 22, HasAudio: true, HasVideo: true, Height: 720, ContentLength: 10},
		{Itag: 96, HasAudio: true, HasVideo: true, Height: 1080, Protocol: ProtocolHLS},
		{Itag: 248, HasVideo: true, Height: 1080, ContentLength: 10},
	}
	SortByBest(in)

	want := []int{22, 18, 137, 248, 140, 96}
	for i, itag := range want {
		if in[i].Itag != itag {
			t.Fatalf("order[%d] = %d, want %d (%+v)", i, in[i].Itag, itag, in)
		}
	}
}

func TestBest(t *testing.T) {
	tests := []struct {
		name string
		in   []Format
		want int
	}{
		{name: "muxed", in: []Format{{Itag: 137, HasVideo: true}, {Itag: 18, HasVideo: true, HasAudio: true}}, want: 18},
		{name: "video only", in: []Format{{Itag: 140, HasAudio: true}, {Itag: 137, HasVideo: true}}, want: 137},
		{name: "audio only", in: []Format{{Itag: 1}, {Itag: 140, HasAudio: true}}, want: 140},
		{name: "first", in: []Format{{Itag: 1}, {Itag: 2}}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Best(tt.in)
			if !ok || got.Itag != tt.want {
				t.Fatalf("Best() = %d, %v, want %d", got.Itag, ok, tt.want)
			}
		})
	}
	if _, ok := Best(nil); ok {
		t.Fatal("Best(nil) reported a format")
	}
}

func TestItagFromURL(t *testing.T) {
	tests := map[string]int{
		"https://manifest.test/api/manifest/hls_playlist/itag/95/index.m3u8": 95,
		"https://r1.test/videoplayback?itag=251&mime=audio":                  251,
		"https://r1.test/videoplayback":                                      0,
	}
	for in, want := range tests {
		if got := ItagFromURL(in); got != want {
			t.Errorf("ItagFromURL(%q) = %d, want %d", in, got, want)
		}
	}
}
