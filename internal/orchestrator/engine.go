package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/famomatic/ytcipher/internal/downloader"
	"github.com/famomatic/ytcipher/internal/formats"
	"github.com/famomatic/ytcipher/internal/innertube"
	"github.com/famomatic/ytcipher/internal/playerjs"
	"github.com/famomatic/ytcipher/internal/policy"
	"github.com/famomatic/ytcipher/internal/resolver"
	"github.com/famomatic/ytcipher/internal/sandbox"
	"github.com/famomatic/ytcipher/internal/types"
)

// ScriptLocator finds the current player script URL.
type ScriptLocator interface {
	LocateScript(ctx context.Context, seedPageURL string) (string, error)
}

// FunctionSource returns the compiled transforms of a player script.
type FunctionSource interface {
	GetFunctions(ctx context.Context, scriptURL string) (*playerjs.Functions, error)
	ReportFailure(ctx context.Context, fns *playerjs.Functions, reason string)
}

type Config struct {
	HTTPClient     *http.Client
	PlayerEndpoint string
	SeedPageURL    string

	Scripts   ScriptLocator
	Functions FunctionSource

	Cookies         innertube.CookieSource
	VisitorData     string
	PoTokenProvider innertube.PoTokenProvider

	// RequestsPerSecond paces player API requests. Zero disables pacing.
	RequestsPerSecond float64
	SkipManifests     bool

	Logger logrus.FieldLogger
}

// Engine is the main orchestrator for video extraction.
type Engine struct {
	selector policy.Selector
	config   Config
	limiter  *rate.Limiter
	log      logrus.FieldLogger
}

func NewEngine(selector policy.Selector, config Config) *Engine {
	if selector == nil {
		selector = policy.NewSelector(nil, nil, nil)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	log := config.Logger
	if log == nil {
		log = types.DiscardLogger()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &Engine{
		selector: selector,
		config:   config,
		limiter:  limiter,
		log:      log,
	}
}

// VideoInfo is the merged result of every client that answered.
type VideoInfo struct {
	VideoID            string
	PlayerURL          string
	SignatureTimestamp int
	VisitorData        string

	Details     innertube.VideoDetails
	Microformat innertube.Microformat

	DashManifestURL string
	HlsManifestURL  string

	// Formats are deduplicated by itag and sorted best first.
	Formats []formats.Format
	Best    formats.Format

	Clients  []string
	Attempts []AttemptError
}

type clientResult struct {
	client   string
	response *innertube.PlayerResponse
	visitor  string
	err      error
}

// GetVideoInfo queries every selected client concurrently and merges the
// playable formats. A client failure never cancels its siblings.
func (e *Engine) GetVideoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	clients := e.selector.Select(videoID)
	if len(clients) == 0 {
		return nil, types.ErrNoClientsAvailable
	}
	log := e.log.WithField("video", videoID)

	info := &VideoInfo{VideoID: videoID}
	fns, scriptErr := e.loadFunctions(ctx, info)
	if scriptErr != nil {
		log.WithError(scriptErr).Warn("player script unavailable, ciphered formats will be dropped")
	}

	results := make([]clientResult, len(clients))
	var g errgroup.Group
	for i, profile := range clients {
		i, profile := i, profile
		g.Go(func() error {
			resp, visitor, err := e.fetch(ctx, videoID, profile, info.SignatureTimestamp)
			results[i] = clientResult{client: profile.Name, response: resp, visitor: visitor, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progs := e.programs(ctx, fns, log)
	var merged []formats.Format
	rejected := 0
	for _, res := range results {
		if res.err != nil {
			log.WithField("client", res.client).WithError(res.err).Debug("client attempt failed")
			info.Attempts = append(info.Attempts, AttemptError{Client: res.client, Err: res.err})
			continue
		}
		info.Clients = append(info.Clients, res.client)
		e.mergeDetails(info, res)

		raw := res.response.AllFormats()
		resolved := resolver.ResolveAll(raw, progs)
		rejected += len(raw) - len(resolved)
		for _, f := range resolved {
			merged = append(merged, formats.FromRaw(f))
		}
		merged = append(merged, e.manifestFormats(ctx, res, log)...)
	}

	playable := dedupByItag(merged)
	if len(playable) == 0 {
		return nil, &NoPlayableFormatsError{
			VideoID:   videoID,
			Attempts:  info.Attempts,
			Rejected:  rejected,
			ScriptErr: scriptErr,
		}
	}

	formats.SortByBest(playable)
	e.applyPoTokens(ctx, playable, log)
	info.Formats = playable
	info.Best, _ = formats.Best(playable)
	log.WithFields(logrus.Fields{
		"formats": len(playable),
		"clients": strings.Join(info.Clients, ","),
		"best":    info.Best.Itag,
	}).Debug("video info resolved")
	return info, nil
}

// GetFunctions exposes the memoized transforms of scriptURL.
func (e *Engine) GetFunctions(ctx context.Context, scriptURL string) (*playerjs.Functions, error) {
	if e.config.Functions == nil {
		return nil, fmt.Errorf("no player script source configured")
	}
	return e.config.Functions.GetFunctions(ctx, scriptURL)
}

// DecipherFormats resolves raw formats against scriptURL and indexes the
// playable ones by URL. A script failure fails the whole batch.
func (e *Engine) DecipherFormats(ctx context.Context, raw []*innertube.Format, scriptURL string) (map[string]*innertube.Format, error) {
	fns, err := e.GetFunctions(ctx, scriptURL)
	if err != nil {
		return nil, err
	}
	return resolver.DecipherFormats(raw, e.programs(ctx, fns, e.log.WithField("player", scriptURL))), nil
}

func (e *Engine) loadFunctions(ctx context.Context, info *VideoInfo) (*playerjs.Functions, error) {
	if e.config.Scripts == nil || e.config.Functions == nil {
		return nil, nil
	}
	scriptURL, err := e.config.Scripts.LocateScript(ctx, e.config.SeedPageURL)
	if err != nil {
		return nil, err
	}
	info.PlayerURL = scriptURL
	fns, err := e.config.Functions.GetFunctions(ctx, scriptURL)
	if err != nil {
		return nil, err
	}
	info.SignatureTimestamp = fns.SignatureTimestamp
	return fns, nil
}

func (e *Engine) programs(ctx context.Context, fns *playerjs.Functions, log logrus.FieldLogger) resolver.Programs {
	progs := resolver.FromFunctions(fns)
	progs.Log = log
	if fns != nil && e.config.Functions != nil {
		src := e.config.Functions
		progs.OnFailure = func(kind sandbox.Kind, err error) {
			src.ReportFailure(context.WithoutCancel(ctx), fns, fmt.Sprintf("%s transform failed: %v", kind, err))
		}
	}
	return progs
}

func (e *Engine) fetch(ctx context.Context, videoID string, profile innertube.ClientProfile, sts int) (*innertube.PlayerResponse, string, error) {
	ctx = types.WithClientName(ctx, profile.Name)
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	visitor := innertube.ResolveVisitorData(e.config.Cookies, profile.Host, e.config.VisitorData)
	req := innertube.NewPlayerRequest(profile, videoID, innertube.PlayerRequestOptions{
		VisitorData:        visitor,
		SignatureTimestamp: sts,
	})
	e.applyRequestPoToken(ctx, req, profile)

	var extra http.Header
	if profile.SupportsCookies && e.config.Cookies != nil {
		extra = innertube.BuildCookieAuthHeaders(e.config.Cookies, profile.Host, time.Now())
	}
	httpReq, err := innertube.NewHTTPRequest(ctx, e.config.PlayerEndpoint, profile, req, extra)
	if err != nil {
		return nil, "", err
	}

	resp, err := e.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &HTTPStatusError{Client: profile.Name, StatusCode: resp.StatusCode}
	}
	body, err := downloader.ReadBody(resp)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read player response: %w", err)
	}

	probe := innertube.ProbeResponse(body)
	if !probe.IsOK() {
		return nil, "", &PlayabilityError{Client: profile.Name, Status: probe.Status, Reason: probe.Reason}
	}
	if probe.VideoID != "" && probe.VideoID != videoID {
		return nil, "", &MalformedResponseError{Client: profile.Name, VideoID: videoID, Got: probe.VideoID}
	}

	playerResp, err := innertube.DecodePlayerResponse(body, profile.Name)
	if err != nil {
		return nil, "", err
	}
	return playerResp, probe.VisitorData, nil
}

func (e *Engine) applyRequestPoToken(ctx context.Context, req *innertube.PlayerRequest, profile innertube.ClientProfile) {
	if !profile.PoTokenRecommended || e.config.PoTokenProvider == nil {
		return
	}
	token, err := e.config.PoTokenProvider.GetToken(ctx, profile.Name)
	if err != nil {
		e.log.WithField("client", profile.Name).WithError(err).Debug("po token provider failed")
		return
	}
	if token != "" {
		req.SetPoToken(token)
	}
}

// applyPoTokens decorates stream URLs with pot/potc. Provider failures leave
// the URL as is.
func (e *Engine) applyPoTokens(ctx context.Context, list []formats.Format, log logrus.FieldLogger) {
	if e.config.PoTokenProvider == nil {
		return
	}
	for i := range list {
		f := &list[i]
		if f.Protocol != formats.ProtocolHTTPS {
			continue
		}
		token, err := e.config.PoTokenProvider.GetToken(ctx, f.SourceClient)
		if err != nil || token == "" {
			continue
		}
		decorated, err := resolver.WithPoToken(f.URL, token)
		if err != nil {
			log.WithField("itag", f.Itag).WithError(err).Debug("po token not applied")
			continue
		}
		f.URL = decorated
	}
}

func (e *Engine) mergeDetails(info *VideoInfo, res clientResult) {
	resp := res.response
	if info.Details.VideoID == "" && resp.VideoDetails.VideoID != "" {
		info.Details = resp.VideoDetails
	}
	if info.Microformat.PlayerMicroformatRenderer.UploadDate == "" {
		info.Microformat = resp.Microformat
	}
	if info.VisitorData == "" {
		info.VisitorData = res.visitor
	}
	if info.DashManifestURL == "" {
		info.DashManifestURL = resp.StreamingData.DashManifestURL
	}
	if info.HlsManifestURL == "" {
		info.HlsManifestURL = resp.StreamingData.HlsManifestURL
	}
}

func (e *Engine) manifestFormats(ctx context.Context, res clientResult, log logrus.FieldLogger) []formats.Format {
	if e.config.SkipManifests {
		return nil
	}
	var out []formats.Format
	sd := res.response.StreamingData
	for _, m := range []struct{ protocol, url string }{
		{formats.ProtocolDASH, sd.DashManifestURL},
		{formats.ProtocolHLS, sd.HlsManifestURL},
	} {
		if m.url == "" {
			continue
		}
		list, err := formats.FetchManifest(ctx, e.config.HTTPClient, m.protocol, m.url)
		if err != nil {
			log.WithFields(logrus.Fields{"client": res.client, "protocol": m.protocol}).WithError(err).Debug("manifest fetch failed")
			continue
		}
		for i := range list {
			list[i].SourceClient = res.client
		}
		out = append(out, list...)
	}
	return out
}

// dedupByItag keeps one format per itag, preferring URLs issued for the
// ANDROID_VR client. Formats without a URL or mime type are dropped.
// First-seen order is kept.
func dedupByItag(list []formats.Format) []formats.Format {
	index := make(map[int]int, len(list))
	out := make([]formats.Format, 0, len(list))
	for _, f := range list {
		if f.URL == "" || f.MimeType == "" {
			continue
		}
		if at, ok := index[f.Itag]; ok {
			if !issuedFor(out[at].URL, "ANDROID_VR") && issuedFor(f.URL, "ANDROID_VR") {
				out[at] = f
			}
			continue
		}
		index[f.Itag] = len(out)
		out = append(out, f)
	}
	return out
}

func issuedFor(rawURL, client string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Query().Get("c") == client
}
