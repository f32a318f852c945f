package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/famomatic/ytcipher/internal/challenge"
	"github.com/famomatic/ytcipher/internal/cookies"
	"github.com/famomatic/ytcipher/internal/formats"
	"github.com/famomatic/ytcipher/internal/innertube"
	"github.com/famomatic/ytcipher/internal/orchestrator"
	"github.com/famomatic/ytcipher/internal/playerjs"
	"github.com/famomatic/ytcipher/internal/policy"
	"github.com/famomatic/ytcipher/internal/sandbox"
	"github.com/famomatic/ytcipher/internal/types"
)

// Client resolves playable stream URLs for YouTube videos.
type Client struct {
	config     Config
	httpClient *http.Client
	session    *cookies.Session
	fetcher    *playerjs.Fetcher
	programs   *playerjs.Programs
	engine     *orchestrator.Engine
	redis      *redis.Client
	log        logrus.FieldLogger
}

// New creates a client. Zero config fields take DefaultConfig values.
func New(config Config) (*Client, error) {
	config = withDefaults(config)
	log := config.Logger
	if log == nil {
		log = types.DiscardLogger()
	}

	switch sandbox.Engine(config.Sandbox.Engine) {
	case sandbox.EngineGoja, sandbox.EngineOtto:
	default:
		return nil, fmt.Errorf("%w: %v %q", ErrInvalidInput, sandbox.ErrUnknownEngine, config.Sandbox.Engine)
	}

	session := cookies.NewSession()
	if config.CookiesFile != "" {
		loaded, err := cookies.LoadFile(config.CookiesFile)
		if err != nil {
			return nil, err
		}
		session = loaded
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = newHTTPClient(config, session.Jar(), log)
		if err != nil {
			return nil, err
		}
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		session:    session,
		log:        log,
	}

	cache := playerjs.NewMemoryCache(config.ScriptTTL)
	if config.Cache.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     config.Cache.RedisAddr,
			Password: config.Cache.RedisPassword,
			DB:       config.Cache.RedisDB,
		})
		cache = playerjs.NewTieredCache(cache, playerjs.NewRedisCache(c.redis, config.ScriptTTL))
	}

	c.fetcher = playerjs.NewFetcher(httpClient, cache, playerjs.FetcherConfig{
		BaseURL:         config.PlayerBaseURL,
		SeedPageURL:     config.SeedPageURL,
		PreferredLocale: config.PlayerLocale,
		TTL:             config.ScriptTTL,
		Logger:          log,
	})
	c.programs = playerjs.NewPrograms(c.fetcher, nil, playerjs.ProgramsConfig{
		Sandbox: sandbox.Options{
			Engine:        sandbox.Engine(config.Sandbox.Engine),
			Timeout:       config.Sandbox.Timeout,
			DisableNative: config.Sandbox.DisableNative,
		},
		TTL:      config.ScriptTTL,
		MemoSize: config.Sandbox.MemoSize,
		DumpDir:  config.Debug.DumpDir,
		Logger:   log,
	})

	var potProvider innertube.PoTokenProvider
	switch {
	case config.PoTokenProvider != nil:
		potProvider = challenge.NewCachedPoTokenProvider(config.PoTokenProvider, challenge.PoTokenTTL)
	case config.PoToken != "":
		potProvider = challenge.StaticPoTokenProvider(config.PoToken)
	}

	c.engine = orchestrator.NewEngine(
		policy.NewSelector(innertube.NewRegistry(), config.Clients, config.SkipClients),
		orchestrator.Config{
			HTTPClient:        httpClient,
			SeedPageURL:       config.SeedPageURL,
			Scripts:           c.fetcher,
			Functions:         c.programs,
			Cookies:           session,
			VisitorData:       config.VisitorData,
			PoTokenProvider:   potProvider,
			RequestsPerSecond: config.RequestsPerSecond,
			SkipManifests:     config.SkipManifests,
			Logger:            log,
		},
	)
	return c, nil
}

// Close releases the Redis connection pool, if any.
func (c *Client) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

// GetVideo fetches video metadata and resolved formats for the input ID/URL.
func (c *Client) GetVideo(ctx context.Context, input string) (*VideoInfo, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}
	info, err := c.engine.GetVideoInfo(ctx, videoID)
	if err != nil {
		return nil, mapError(err)
	}
	return toVideoInfo(info), nil
}

// GetFormats returns the resolved formats only, best first.
func (c *Client) GetFormats(ctx context.Context, input string) ([]FormatInfo, error) {
	v, err := c.GetVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	return v.Formats, nil
}

// PlayerURL locates the current player script.
func (c *Client) PlayerURL(ctx context.Context) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	return c.fetcher.LocateScript(ctx, c.config.SeedPageURL)
}

// DecipherSignature runs the signature transform of scriptURL on s.
func (c *Client) DecipherSignature(ctx context.Context, scriptURL, s string) (string, error) {
	return c.solve(ctx, scriptURL, sandbox.KindSignature, s)
}

// TransformN runs the n transform of scriptURL on n.
func (c *Client) TransformN(ctx context.Context, scriptURL, n string) (string, error) {
	return c.solve(ctx, scriptURL, sandbox.KindN, n)
}

func (c *Client) solve(ctx context.Context, scriptURL string, kind sandbox.Kind, input string) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	fns, err := c.engine.GetFunctions(ctx, scriptURL)
	if err != nil {
		return "", err
	}
	prog := fns.Decipher
	if kind == sandbox.KindN {
		prog = fns.NTransform
	}
	if prog == nil {
		return "", fmt.Errorf("%w: no %s transform in %s", ErrChallengeNotSolved, kind, playerjs.ScriptID(scriptURL))
	}
	out, err := prog.Run(input)
	if err != nil {
		c.programs.ReportFailure(context.WithoutCancel(ctx), fns, err.Error())
		return "", fmt.Errorf("%w: %w", ErrChallengeNotSolved, err)
	}
	return out, nil
}

// CipheredFormat is a stream descriptor as returned by the player API.
type CipheredFormat struct {
	Itag            int
	URL             string
	SignatureCipher string
	MimeType        string
}

// ResolveFormats deciphers formats against scriptURL and indexes the
// playable ones by URL. Formats that fail to resolve are omitted.
func (c *Client) ResolveFormats(ctx context.Context, scriptURL string, list []CipheredFormat) (map[string]FormatInfo, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	raw := make([]*innertube.Format, 0, len(list))
	for _, f := range list {
		raw = append(raw, &innertube.Format{
			Itag:            f.Itag,
			URL:             f.URL,
			SignatureCipher: f.SignatureCipher,
			MimeType:        f.MimeType,
		})
	}
	resolved, err := c.engine.DecipherFormats(ctx, raw, scriptURL)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FormatInfo, len(resolved))
	for u, f := range resolved {
		out[u] = toFormatInfo(formats.FromRaw(f))
	}
	return out, nil
}

func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	if len(cfg.Clients) == 0 {
		cfg.Clients = d.Clients
	}
	if cfg.PlayerLocale == "" {
		cfg.PlayerLocale = d.PlayerLocale
	}
	if cfg.ScriptTTL <= 0 {
		cfg.ScriptTTL = d.ScriptTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.Sandbox.Engine == "" {
		cfg.Sandbox.Engine = d.Sandbox.Engine
	}
	if cfg.Sandbox.Timeout <= 0 {
		cfg.Sandbox.Timeout = d.Sandbox.Timeout
	}
	if cfg.Sandbox.MemoSize <= 0 {
		cfg.Sandbox.MemoSize = d.Sandbox.MemoSize
	}
	if cfg.Transport.MaxRetries == 0 {
		cfg.Transport.MaxRetries = d.Transport.MaxRetries
	}
	if cfg.Download.ChunkSize <= 0 {
		cfg.Download.ChunkSize = d.Download.ChunkSize
	}
	return cfg
}

func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
