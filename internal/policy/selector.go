package policy

import (
	"strings"

	"github.com/famomatic/ytcipher/internal/innertube"
)

// Selector decides which clients to query for a given video request.
type Selector interface {
	Select(videoID string) []innertube.ClientProfile
	Registry() innertube.Registry
}

type defaultSelector struct {
	registry    innertube.Registry
	clientOrder []string
	clientSkip  map[string]struct{}
}

// NewSelector builds a selector over registry. An empty order means
// innertube.DefaultClientOrder. Skips match registry aliases or client names.
func NewSelector(registry innertube.Registry, clientOrder []string, clientSkip []string) Selector {
	if registry == nil {
		registry = innertube.NewRegistry()
	}
	skip := make(map[string]struct{}, len(clientSkip))
	for _, name := range clientSkip {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		skip[normalized] = struct{}{}
	}
	return &defaultSelector{
		registry:    registry,
		clientOrder: clientOrder,
		clientSkip:  skip,
	}
}

func (s *defaultSelector) Registry() innertube.Registry {
	return s.registry
}

func (s *defaultSelector) Select(videoID string) []innertube.ClientProfile {
	profiles := s.resolve(s.clientOrder)
	// Overrides that name nothing usable fall back to the defaults.
	if len(profiles) == 0 {
		profiles = s.resolve(innertube.DefaultClientOrder)
	}
	return profiles
}

func (s *defaultSelector) resolve(names []string) []innertube.ClientProfile {
	var profiles []innertube.ClientProfile
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		p, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		if _, exists := seen[p.ID]; exists {
			continue
		}
		if s.skipped(p) {
			continue
		}
		seen[p.ID] = struct{}{}
		profiles = append(profiles, p)
	}
	return profiles
}

func (s *defaultSelector) skipped(p innertube.ClientProfile) bool {
	if _, ok := s.clientSkip[strings.ToLower(p.ID)]; ok {
		return true
	}
	_, ok := s.clientSkip[strings.ToLower(p.Name)]
	return ok
}
