package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/famomatic/ytcipher/client"
)

func TestRun_SolvesChallengesFromConfig(t *testing.T) {
	script, err := os.ReadFile(filepath.Join("..", "..", "internal", "playerjs", "testdata", "classic_basejs.js"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		_, _ = w.Write(script)
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "ytcipher.yaml")
	cfgBody := "player_base_url: " + srv.URL + "\nlog:\n  level: error\nsandbox:\n  engine: goja\n"
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--config", cfgPath,
		"--player-url", srv.URL + "/s/player/0a1b2c3d/player_ias.vflset/en_US/base.js",
		"--solve-sig", "abcdefgh",
		"--solve-n", "abc",
	}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("run() = %d, stderr = %s", code, stderr.String())
	}
	if got, want := stdout.String(), "sig edcba\nn cbaZ\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "help", args: []string{"-h"}, want: exitOK},
		{name: "missing url", args: nil, want: exitUsage},
		{name: "unknown flag", args: []string{"--nope", "x"}, want: exitUsage},
		{name: "missing config", args: []string{"--config", "/nonexistent/ytcipher.yaml", "x"}, want: exitError},
		{name: "unknown engine", args: []string{"--engine", "v8", "--solve-n", "abc", "--player-url", "http://127.0.0.1:1/base.js"}, want: exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(tt.args, &stdout, &stderr); got != tt.want {
				t.Fatalf("run(%v) = %d, want %d (stderr %q)", tt.args, got, tt.want, stderr.String())
			}
		})
	}
}

func TestFormatLine(t *testing.T) {
	got := formatLine(client.FormatInfo{
		Itag:         140,
		Container:    "mp4",
		AudioQuality: "AUDIO_QUALITY_MEDIUM",
		HasAudio:     true,
		Bitrate:      130000,
		Protocol:     "https",
		Codecs:       []string{"mp4a.40.2"},
	})
	for _, want := range []string{"140", "mp4", "AUDIO_QUALITY_MEDIUM", "audio only", "130 kbps", "mp4a.40.2"} {
		if !strings.Contains(got, want) {
			t.Fatalf("formatLine() = %q, missing %q", got, want)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)
	p(50, 100)
	p(50, 100)
	p(100, 100)
	if got := strings.Count(buf.String(), "\r"); got != 2 {
		t.Fatalf("progress lines = %d, want 2 (%q)", got, buf.String())
	}
}
