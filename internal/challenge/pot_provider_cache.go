package challenge

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/famomatic/ytcipher/internal/innertube"
)

// PoTokenTTL is how long a minted PO token is reused.
const PoTokenTTL = 6 * time.Hour

type cachedPoTokenProvider struct {
	base   innertube.PoTokenProvider
	tokens *gocache.Cache
}

// NewCachedPoTokenProvider wraps a PoTokenProvider with in-memory client-keyed
// token caching. Empty tokens are not cached.
func NewCachedPoTokenProvider(base innertube.PoTokenProvider, ttl time.Duration) innertube.PoTokenProvider {
	if base == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = PoTokenTTL
	}
	return &cachedPoTokenProvider{
		base:   base,
		tokens: gocache.New(ttl, ttl),
	}
}

func (p *cachedPoTokenProvider) GetToken(ctx context.Context, clientID string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(clientID))
	if key == "" {
		return p.base.GetToken(ctx, clientID)
	}
	if v, ok := p.tokens.Get(key); ok {
		return v.(string), nil
	}

	token, err := p.base.GetToken(ctx, clientID)
	if err != nil || strings.TrimSpace(token) == "" {
		return token, err
	}
	p.tokens.SetDefault(key, token)
	return token, nil
}

// StaticPoTokenProvider hands out one configured token to every client.
type StaticPoTokenProvider string

func (s StaticPoTokenProvider) GetToken(context.Context, string) (string, error) {
	return strings.TrimSpace(string(s)), nil
}
