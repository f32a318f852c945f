package playerjs

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/famomatic/ytcipher/internal/challenge"
	"github.com/famomatic/ytcipher/internal/sandbox"
	"github.com/famomatic/ytcipher/internal/types"
)

// Functions are the compiled transforms of one player script. Either
// program may be nil when extraction or compilation failed.
type Functions struct {
	ScriptURL          string
	Decipher           sandbox.Program
	NTransform         sandbox.Program
	SignatureTimestamp int
	Extraction         Extraction
}

// ScriptSource supplies player script text.
type ScriptSource interface {
	GetPlayerScript(ctx context.Context, scriptURL string) (*Script, error)
	NormalizeURL(raw string) string
}

type ProgramsConfig struct {
	Sandbox  sandbox.Options
	TTL      time.Duration
	MemoSize int
	DumpDir  string
	Logger   logrus.FieldLogger
}

// Programs memoizes Functions per script URL. Fetch, extraction and
// compilation happen at most once per TTL window; concurrent callers share
// the in-flight work.
type Programs struct {
	scripts   ScriptSource
	extractor *Extractor
	cfg       ProgramsConfig
	cache     *gocache.Cache
	group     singleflight.Group
	dumper    *Dumper
	log       logrus.FieldLogger
}

func NewPrograms(scripts ScriptSource, extractor *Extractor, cfg ProgramsConfig) *Programs {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultScriptTTL
	}
	log := cfg.Logger
	if log == nil {
		log = types.DiscardLogger()
	}
	if extractor == nil {
		extractor = NewExtractor(ExtractorOptions{Logger: log})
	}
	return &Programs{
		scripts:   scripts,
		extractor: extractor,
		cfg:       cfg,
		cache:     gocache.New(cfg.TTL, cfg.TTL/2),
		dumper:    NewDumper(cfg.DumpDir, log),
		log:       log,
	}
}

// GetFunctions returns the transforms for scriptURL. Extraction failures
// are not errors: the corresponding program is nil.
func (p *Programs) GetFunctions(ctx context.Context, scriptURL string) (*Functions, error) {
	key := p.scripts.NormalizeURL(scriptURL)
	if v, ok := p.cache.Get(key); ok {
		return v.(*Functions), nil
	}
	ch := p.group.DoChan(key, func() (interface{}, error) {
		if v, ok := p.cache.Get(key); ok {
			return v, nil
		}
		script, err := p.scripts.GetPlayerScript(context.WithoutCancel(ctx), scriptURL)
		if err != nil {
			return nil, err
		}
		fns := p.Build(script.URL, script.Body)
		// Programs live exactly as long as the script they came from.
		if d, live := remaining(script); live {
			p.cache.Set(key, fns, d)
		}
		return fns, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Functions), nil
	}
}

// Build extracts and compiles transforms from script text without caching.
func (p *Programs) Build(scriptURL, body string) *Functions {
	log := p.log.WithField("player", ScriptID(scriptURL))
	ext := p.extractor.Extract(body)
	fns := &Functions{ScriptURL: scriptURL, Extraction: ext}
	if sts, ok := SignatureTimestamp(body); ok {
		fns.SignatureTimestamp = sts
	}

	fns.Decipher = p.compile(log, ext.Decipher)
	fns.NTransform = p.compile(log, ext.NTransform)

	switch {
	case fns.Decipher == nil && fns.NTransform == nil:
		log.Warn("could not extract decipher or n transform; ciphered stream URLs will be missing")
		p.dumper.Dump(scriptURL, body, "no transforms")
	case fns.Decipher == nil:
		log.Warn("could not extract decipher function; ciphered stream URLs will be missing")
		p.dumper.Dump(scriptURL, body, "no decipher")
	case fns.NTransform == nil:
		log.Warn("could not extract n transform; downloads may be throttled")
		p.dumper.Dump(scriptURL, body, "no n transform")
	}
	return fns
}

func (p *Programs) compile(log logrus.FieldLogger, s *Snippet) sandbox.Program {
	if s == nil {
		return nil
	}
	prog, err := sandbox.Compile(s.Source(), p.cfg.Sandbox)
	if err != nil {
		log.WithFields(logrus.Fields{"kind": s.Kind, "strategy": s.Strategy}).WithError(err).Warn("compile extracted transform")
		return nil
	}
	return challenge.Memoize(prog, p.cfg.MemoSize)
}

// ReportFailure dumps the script behind fns after a transform failed at run
// time. The dump happens once per script URL.
func (p *Programs) ReportFailure(ctx context.Context, fns *Functions, reason string) {
	if fns == nil || p.cfg.DumpDir == "" {
		return
	}
	script, err := p.scripts.GetPlayerScript(ctx, fns.ScriptURL)
	if err != nil {
		return
	}
	p.dumper.Dump(fns.ScriptURL, script.Body, reason)
}
