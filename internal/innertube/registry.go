package innertube

import (
	"strings"
	"sync"
)

type defaultRegistry struct {
	mu      sync.RWMutex
	order   []string
	clients map[string]ClientProfile
}

// NewRegistry creates a registry holding the built-in clients.
func NewRegistry() Registry {
	r := &defaultRegistry{clients: make(map[string]ClientProfile)}
	for _, p := range []ClientProfile{AndroidVRClient, AndroidClient, IOSClient, WebClient, WebEmbeddedClient, TVClient} {
		r.add(p)
	}
	return r
}

func (r *defaultRegistry) add(p ClientProfile) {
	id := strings.ToLower(p.ID)
	if _, ok := r.clients[id]; !ok {
		r.order = append(r.order, id)
	}
	r.clients[id] = p
}

// Get looks a client up by registry alias or by Innertube client name.
func (r *defaultRegistry) Get(id string) (ClientProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := strings.ToLower(strings.TrimSpace(id))
	if c, ok := r.clients[key]; ok {
		return c, true
	}
	for _, c := range r.clients {
		if strings.EqualFold(c.Name, key) {
			return c, true
		}
	}
	return ClientProfile{}, false
}

// All returns the clients in registration order.
func (r *defaultRegistry) All() []ClientProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]ClientProfile, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.clients[id])
	}
	return all
}
