package client

import (
	"testing"

	"github.com/famomatic/ytcipher/internal/formats"
)

func TestSelectDownloadFormat(t *testing.T) {
	list := []FormatInfo{
		{Itag: 299, Protocol: formats.ProtocolDASH, HasVideo: true, HasAudio: true, Container: "mp4"},
		{Itag: 137, Protocol: formats.ProtocolHTTPS, HasVideo: true, Container: "mp4"},
		{Itag: 18, Protocol: formats.ProtocolHTTPS, HasVideo: true, HasAudio: true, Container: "mp4"},
		{Itag: 251, Protocol: formats.ProtocolHTTPS, HasAudio: true, Container: "webm"},
	}
	tests := []struct {
		name string
		itag int
		mode SelectionMode
		want int
		ok   bool
	}{
		{name: "best prefers muxed https", mode: SelectionModeBest, want: 18, ok: true},
		{name: "empty mode is best", want: 18, ok: true},
		{name: "mp4av", mode: SelectionModeMP4AV, want: 18, ok: true},
		{name: "video only", mode: SelectionModeVideoOnly, want: 137, ok: true},
		{name: "audio only", mode: "AudioOnly", want: 251, ok: true},
		{name: "forced itag", itag: 251, want: 251, ok: true},
		{name: "forced manifest itag", itag: 299, ok: false},
		{name: "unknown itag", itag: 22, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectDownloadFormat(list, tt.itag, tt.mode)
			if ok != tt.ok {
				t.Fatalf("selectDownloadFormat() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Itag != tt.want {
				t.Fatalf("selectDownloadFormat() itag = %d, want %d", got.Itag, tt.want)
			}
		})
	}
}

func TestSelectDownloadFormat_BestFallsBackToAudio(t *testing.T) {
	list := []FormatInfo{{Itag: 140, Protocol: formats.ProtocolHTTPS, HasAudio: true}}
	got, ok := selectDownloadFormat(list, 0, SelectionModeBest)
	if !ok || got.Itag != 140 {
		t.Fatalf("selectDownloadFormat() = %d, %v, want 140", got.Itag, ok)
	}
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		f    FormatInfo
		want string
	}{
		{FormatInfo{Itag: 18, Container: "mp4", HasVideo: true, HasAudio: true}, "abc-18.mp4"},
		{FormatInfo{Itag: 140, Container: "mp4", HasAudio: true}, "abc-140.m4a"},
		{FormatInfo{Itag: 251, Container: "webm", HasAudio: true}, "abc-251.webm"},
		{FormatInfo{Itag: 1}, "abc-1.bin"},
	}
	for _, tt := range tests {
		if got := defaultOutputPath("abc", tt.f); got != tt.want {
			t.Errorf("defaultOutputPath(%d) = %q, want %q", tt.f.Itag, got, tt.want)
		}
	}
}
