package policy

import (
	"testing"

	"github.com/famomatic/ytcipher/internal/innertube"
)

func names(profiles []innertube.ClientProfile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Name)
	}
	return out
}

func TestDefaultOrder(t *testing.T) {
	s := NewSelector(innertube.NewRegistry(), nil, nil)
	got := names(s.Select("jNQXAC9IVRw"))
	want := []string{"ANDROID_VR", "WEB_EMBEDDED_PLAYER", "IOS", "ANDROID", "TVHTML5"}
	if len(got) != len(want) {
		t.Fatalf("Select() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOverridesAreNormalizedAndDeduplicated(t *testing.T) {
	s := NewSelector(innertube.NewRegistry(), []string{"  WEB ", "web", "Web_Embedded", "WEB_EMBEDDED_PLAYER", "unknown"}, nil)
	got := names(s.Select("jNQXAC9IVRw"))
	if len(got) != 2 || got[0] != "WEB" || got[1] != "WEB_EMBEDDED_PLAYER" {
		t.Fatalf("Select() = %v, want [WEB WEB_EMBEDDED_PLAYER]", got)
	}
}

func TestSkipClientsAreExcluded(t *testing.T) {
	s := NewSelector(innertube.NewRegistry(), []string{"web", "tv", "ios"}, []string{"TVHTML5"})
	got := names(s.Select("jNQXAC9IVRw"))
	if len(got) != 2 || got[0] != "WEB" || got[1] != "IOS" {
		t.Fatalf("unexpected order after skip: %v", got)
	}
}

func TestInvalidOverridesFallBackToDefaults(t *testing.T) {
	s := NewSelector(nil, []string{"mweb", "web_safari"}, []string{"ios"})
	got := names(s.Select("jNQXAC9IVRw"))
	want := []string{"ANDROID_VR", "WEB_EMBEDDED_PLAYER", "ANDROID", "TVHTML5"}
	if len(got) != len(want) {
		t.Fatalf("Select() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
