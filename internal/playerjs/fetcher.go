package playerjs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/famomatic/ytcipher/internal/downloader"
	"github.com/famomatic/ytcipher/internal/types"
)

// Script is an immutable fetched player script.
type Script struct {
	URL       string    `json:"url"`
	Body      string    `json:"body"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FetcherConfig contains externally tunable settings for player script fetches.
type FetcherConfig struct {
	BaseURL         string
	SeedPageURL     string
	UserAgent       string
	Headers         http.Header
	PreferredLocale string
	TTL             time.Duration
	// LocateTTL bounds how long a seed page to script URL mapping is reused.
	LocateTTL time.Duration
	// FetchTimeout bounds shared work, which outlives individual callers.
	FetchTimeout time.Duration
	Logger       logrus.FieldLogger
}

const (
	DefaultBaseURL           = "https://www.youtube.com"
	defaultPlayerJSUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultPlayerJSLocale    = "en_US"
	defaultLocateTTL         = time.Hour
	defaultFetchTimeout      = 30 * time.Second
	playerScriptSelector     = `script[name="player_ias/base"]`
)

var (
	jsURLPattern       = regexp.MustCompile(`"jsUrl"\s*:\s*"([^"]+)"`)
	playerJSURLPattern = regexp.MustCompile(`(?i)["']PLAYER_JS_URL["']\s*:\s*["']([^"']+)["']`)
	scriptTagPattern   = regexp.MustCompile(`<script\s+src="([^"]+)"(?:\s+type="text/javascript")?\s+name="player_ias/base"\s*>`)
	playerURLPattern   = regexp.MustCompile(`(/s/player/[A-Za-z0-9_-]+/[A-Za-z0-9._/-]*/base\.js)`)
	playerPathPattern  = regexp.MustCompile(`/s/player/([A-Za-z0-9_-]+)/`)
	localePathPattern  = regexp.MustCompile(`(?i)(player(?:_[a-z0-9]+)?\.vflset)/[a-z]{2,3}_[a-z]{2,3}/base\.js$`)
	jsonEscapeReplacer = strings.NewReplacer(`\u0026`, "&", `\/`, "/", `\"`, `"`)
)

// Fetcher locates and downloads player scripts. Concurrent misses for the
// same URL share one request.
type Fetcher struct {
	client  *http.Client
	cache   Cache
	config  FetcherConfig
	located *gocache.Cache
	group   singleflight.Group
	log     logrus.FieldLogger
}

func NewFetcher(client *http.Client, cache Cache, cfg FetcherConfig) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SeedPageURL == "" {
		cfg.SeedPageURL = cfg.BaseURL + "/embed/"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultPlayerJSUserAgent
	}
	if cfg.PreferredLocale == "" {
		cfg.PreferredLocale = defaultPlayerJSLocale
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultScriptTTL
	}
	if cfg.LocateTTL <= 0 {
		cfg.LocateTTL = defaultLocateTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cache == nil {
		cache = NewMemoryCache(cfg.TTL)
	}
	log := cfg.Logger
	if log == nil {
		log = types.DiscardLogger()
	}
	return &Fetcher{
		client:  client,
		cache:   cache,
		config:  cfg,
		located: gocache.New(cfg.LocateTTL, cfg.LocateTTL),
		log:     log,
	}
}

// Fetch locates the script referenced by the seed page and returns its text.
func (f *Fetcher) Fetch(ctx context.Context, seedPageURL string) (*Script, error) {
	scriptURL, err := f.LocateScript(ctx, seedPageURL)
	if err != nil {
		return nil, err
	}
	return f.GetPlayerScript(ctx, scriptURL)
}

// LocateScript returns the absolute player script URL referenced by the seed
// page. An empty seedPageURL uses the configured default.
func (f *Fetcher) LocateScript(ctx context.Context, seedPageURL string) (string, error) {
	if seedPageURL == "" {
		seedPageURL = f.config.SeedPageURL
	}
	if v, ok := f.located.Get(seedPageURL); ok {
		return v.(string), nil
	}
	v, err := f.shared(ctx, "locate:"+seedPageURL, func(ctx context.Context) (interface{}, error) {
		scriptURL, err := f.locate(ctx, seedPageURL)
		if err != nil {
			return nil, err
		}
		f.located.SetDefault(seedPageURL, scriptURL)
		return scriptURL, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetPlayerScript returns the cached script for scriptURL, fetching it on a
// miss or after expiry.
func (f *Fetcher) GetPlayerScript(ctx context.Context, scriptURL string) (*Script, error) {
	key := f.NormalizeURL(scriptURL)
	if script, ok := f.cache.Get(ctx, key); ok {
		return script, nil
	}
	v, err := f.shared(ctx, "script:"+key, func(ctx context.Context) (interface{}, error) {
		if script, ok := f.cache.Get(ctx, key); ok {
			return script, nil
		}
		script, err := f.fetchScript(ctx, key, f.AbsoluteURL(scriptURL))
		if err != nil {
			return nil, err
		}
		f.cache.Set(ctx, key, script)
		return script, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Script), nil
}

// shared runs fn once per key among concurrent callers. The work is detached
// from the caller's cancellation; each caller stops waiting on its own ctx.
func (f *Fetcher) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := f.group.DoChan(key, func() (interface{}, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.config.FetchTimeout)
		defer cancel()
		return fn(workCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (f *Fetcher) locate(ctx context.Context, seedPageURL string) (string, error) {
	body, status, err := f.get(ctx, seedPageURL)
	if err != nil {
		return "", &ScriptLocationError{SeedURL: seedPageURL, Err: err}
	}
	if status != http.StatusOK {
		return "", &ScriptLocationError{SeedURL: seedPageURL, Err: fmt.Errorf("bad status code: %d", status)}
	}
	raw := findScriptURL(body)
	if raw == "" {
		return "", &ScriptLocationError{SeedURL: seedPageURL, Err: ErrScriptURLNotFound}
	}
	scriptURL := f.AbsoluteURL(raw)
	f.log.WithFields(logrus.Fields{"seed": seedPageURL, "player": ScriptID(scriptURL)}).Debug("located player script")
	return scriptURL, nil
}

func findScriptURL(body string) string {
	for _, re := range []*regexp.Regexp{jsURLPattern, playerJSURLPattern, scriptTagPattern} {
		if m := re.FindStringSubmatch(body); len(m) > 1 {
			return jsonEscapeReplacer.Replace(m[1])
		}
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		if src, ok := doc.Find(playerScriptSelector).First().Attr("src"); ok && src != "" {
			return src
		}
	}
	if m := playerURLPattern.FindStringSubmatch(jsonEscapeReplacer.Replace(body)); len(m) > 1 {
		return m[1]
	}
	return ""
}

func (f *Fetcher) fetchScript(ctx context.Context, normalized, original string) (*Script, error) {
	candidates := []string{normalized}
	if original != normalized {
		candidates = append(candidates, original)
	}

	var lastErr error
	for _, candidate := range candidates {
		body, status, err := f.get(ctx, candidate)
		switch {
		case err != nil:
			lastErr = &ScriptFetchError{URL: candidate, Err: err}
			continue
		case status != http.StatusOK:
			lastErr = &ScriptFetchError{URL: candidate, StatusCode: status}
			continue
		}
		now := time.Now()
		f.log.WithFields(logrus.Fields{"player": ScriptID(candidate), "bytes": len(body)}).Debug("fetched player script")
		return &Script{URL: normalized, Body: body, FetchedAt: now, ExpiresAt: now.Add(f.config.TTL)}, nil
	}
	return nil, lastErr
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept-Encoding", "gzip, br")
	for k, values := range f.config.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, nil
	}
	body, err := downloader.ReadBody(resp)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

// AbsoluteURL resolves protocol-relative and root-relative script URLs.
func (f *Fetcher) AbsoluteURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return f.config.BaseURL + raw
	}
	return raw
}

// NormalizeURL returns the absolute script URL with its locale segment
// rewritten to the preferred locale.
func (f *Fetcher) NormalizeURL(raw string) string {
	abs := f.AbsoluteURL(raw)
	u, err := url.Parse(abs)
	if err != nil || u.Path == "" {
		return abs
	}
	if localePathPattern.MatchString(u.Path) {
		u.Path = localePathPattern.ReplaceAllString(u.Path, "${1}/"+f.config.PreferredLocale+"/base.js")
	}
	return u.String()
}

// ScriptID extracts the player id from a script URL for logging.
func ScriptID(scriptURL string) string {
	if m := playerPathPattern.FindStringSubmatch(scriptURL); len(m) > 1 {
		return m[1]
	}
	return scriptURL
}
