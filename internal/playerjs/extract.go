package playerjs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/famomatic/ytcipher/internal/sandbox"
	"github.com/famomatic/ytcipher/internal/types"
)

const (
	DecipherFuncName   = "ytcipherDecipher"
	NTransformFuncName = "ytcipherNTransform"
)

// Snippet is a self-contained program text: it defines one function and
// ends with a call of that function on the reserved input variable.
type Snippet struct {
	Kind     sandbox.Kind
	Strategy string
	Code     string
	// Ops is set when the function reduces to a plain op list.
	Ops []sandbox.Op
}

func (s *Snippet) Param() string { return s.Kind.Param() }

func (s *Snippet) Source() sandbox.Source {
	return sandbox.Source{Kind: s.Kind, Code: s.Code, Ops: s.Ops}
}

// GlobalVar is the shared lookup table (`var K="...".split(";")` or an
// array literal) newer scripts index into.
type GlobalVar struct {
	Name string
	Code string
}

// Body wraps script text with lazily derived facts shared by strategies.
type Body struct {
	Text string

	globalOnce sync.Once
	global     *GlobalVar
}

func NewBody(text string) *Body {
	return &Body{Text: text}
}

func (b *Body) Global() *GlobalVar {
	b.globalOnce.Do(func() {
		m := findMatch(globalVarPattern, b.Text)
		if m == nil {
			return
		}
		name, code := namedGroup(m, "varname"), namedGroup(m, "code")
		if name == "" || code == "" {
			return
		}
		b.global = &GlobalVar{Name: name, Code: code}
	})
	return b.global
}

// Strategy is one way of locating a transform in a script.
type Strategy interface {
	Name() string
	Kind() sandbox.Kind
	Extract(b *Body) (*Snippet, error)
}

type strategy struct {
	name    string
	kind    sandbox.Kind
	extract func(*Body) (*Snippet, error)
}

// NewStrategy adapts a function to the Strategy interface.
func NewStrategy(name string, kind sandbox.Kind, fn func(*Body) (*Snippet, error)) Strategy {
	return &strategy{name: name, kind: kind, extract: fn}
}

func (s *strategy) Name() string                      { return s.name }
func (s *strategy) Kind() sandbox.Kind                { return s.kind }
func (s *strategy) Extract(b *Body) (*Snippet, error) { return s.extract(b) }

// DefaultStrategies returns the built-in strategies in the order they are tried.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NewStrategy("tce-sign", sandbox.KindSignature, extractTCESignature),
		NewStrategy("helper-object", sandbox.KindSignature, extractHelperObject),
		NewStrategy("name-indirection", sandbox.KindSignature, extractSignatureByCaller),
		NewStrategy("dispatch-table", sandbox.KindSignature, extractDispatchSignature),
		NewStrategy("tce-n", sandbox.KindN, extractTCEN),
		NewStrategy("n-function", sandbox.KindN, extractNFunction),
		NewStrategy("name-indirection", sandbox.KindN, extractNByCaller),
		NewStrategy("dispatch-table", sandbox.KindN, extractDispatchN),
	}
}

// Attempt records a failed strategy.
type Attempt struct {
	Kind     sandbox.Kind
	Strategy string
	Err      error
}

// Extraction is the outcome of scanning one script. Either snippet may be nil.
type Extraction struct {
	Decipher   *Snippet
	NTransform *Snippet
	Global     *GlobalVar
	Attempts   []Attempt
}

type ExtractorOptions struct {
	Strategies []Strategy
	// SkipTrialRun disables the sample run that rejects snippets which
	// throw in isolation.
	SkipTrialRun bool
	Logger       logrus.FieldLogger
}

// Extractor runs strategies in order and keeps the first usable snippet per kind.
type Extractor struct {
	strategies []Strategy
	trial      bool
	log        logrus.FieldLogger
}

func NewExtractor(opts ExtractorOptions) *Extractor {
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	log := opts.Logger
	if log == nil {
		log = types.DiscardLogger()
	}
	return &Extractor{strategies: strategies, trial: !opts.SkipTrialRun, log: log}
}

// Extract scans body with the default strategies.
func Extract(body string) Extraction {
	return NewExtractor(ExtractorOptions{}).Extract(body)
}

func (e *Extractor) Extract(body string) Extraction {
	b := NewBody(body)
	out := Extraction{Global: b.Global()}
	out.Decipher = e.first(b, sandbox.KindSignature, &out.Attempts)
	out.NTransform = e.first(b, sandbox.KindN, &out.Attempts)
	return out
}

func (e *Extractor) first(b *Body, kind sandbox.Kind, attempts *[]Attempt) *Snippet {
	for _, s := range e.strategies {
		if s.Kind() != kind {
			continue
		}
		snippet, err := safeExtract(s, b)
		if err == nil && snippet == nil {
			err = ErrPatternNotFound
		}
		if err == nil && e.trial {
			err = trialRun(snippet)
		}
		if err != nil {
			*attempts = append(*attempts, Attempt{Kind: kind, Strategy: s.Name(), Err: err})
			e.log.WithFields(logrus.Fields{"kind": kind, "strategy": s.Name()}).WithError(err).Debug("extraction strategy failed")
			continue
		}
		snippet.Kind = kind
		snippet.Strategy = s.Name()
		e.log.WithFields(logrus.Fields{"kind": kind, "strategy": s.Name()}).Debug("extracted transform")
		return snippet
	}
	return nil
}

func safeExtract(s Strategy, b *Body) (snippet *Snippet, err error) {
	defer func() {
		if r := recover(); r != nil {
			snippet = nil
			err = fmt.Errorf("%w: %v", ErrStrategyPanic, r)
		}
	}()
	snippet, err = s.Extract(b)
	if snippet != nil {
		snippet.Kind = s.Kind()
	}
	return snippet, err
}

const (
	trialSignature = "AOq0QJ8wRQIhAKz5hM2Vb6c1pZ0xYtQ3nF8rLw9eUj4sDkG7iHaBmCvNAiB1oP2qR3sT4uV5wX6yZ7a8b9c0d1e2f3g4h5i6j7k8"
	trialN         = "iwxTr3Zfq0kd8NxB"
)

// trialRun executes the snippet's JS form once on a representative input.
func trialRun(s *Snippet) error {
	prog, err := sandbox.Compile(s.Source(), sandbox.Options{DisableNative: true})
	if err != nil {
		return err
	}
	input := trialSignature
	if s.Kind == sandbox.KindN {
		input = trialN
	}
	_, err = prog.Run(input)
	return err
}

// callSnippet assembles prelude, `var FN=<expr>;` and the trailing call.
func callSnippet(kind sandbox.Kind, prelude, expr string, leadingArgs ...string) string {
	name := DecipherFuncName
	if kind == sandbox.KindN {
		name = NTransformFuncName
	}
	var sb strings.Builder
	if prelude = strings.TrimSpace(prelude); prelude != "" {
		sb.WriteString(prelude)
		sb.WriteString("\n")
	}
	sb.WriteString("var ")
	sb.WriteString(name)
	sb.WriteString("=")
	sb.WriteString(strings.TrimSuffix(strings.TrimSpace(expr), ";"))
	sb.WriteString(";\n")
	sb.WriteString(name)
	sb.WriteString("(")
	for _, a := range leadingArgs {
		sb.WriteString(a)
		sb.WriteString(",")
	}
	sb.WriteString(kind.Param())
	sb.WriteString(");")
	return sb.String()
}

func withGlobal(b *Body, prelude string) string {
	if g := b.Global(); g != nil {
		return g.Code + ";\n" + prelude
	}
	return prelude
}
