package sandbox

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies which transform a program performs.
type Kind string

const (
	KindSignature Kind = "sig"
	KindN         Kind = "n"
)

// Param returns the single variable bound for the program's input.
func (k Kind) Param() string {
	if k == KindN {
		return "ncode"
	}
	return "sig"
}

// Engine selects the JavaScript runtime used for snippets that cannot be
// reduced to a native op list.
type Engine string

const (
	EngineGoja Engine = "goja"
	EngineOtto Engine = "otto"
)

const DefaultTimeout = 2 * time.Second

var (
	ErrEmptyOutput     = errors.New("transform produced empty output")
	ErrNonStringOutput = errors.New("transform produced non-string output")
	ErrTimeout         = errors.New("transform timed out")
	ErrUnknownEngine   = errors.New("unknown sandbox engine")
)

// Program is a compiled transform. Run is pure: the same input always
// yields the same output and no state survives between runs.
type Program interface {
	Kind() Kind
	Run(input string) (string, error)
}

type Options struct {
	Engine  Engine
	Timeout time.Duration
	// DisableNative forces snippets with an op list through the JS engine.
	DisableNative bool
}

func (o Options) normalize() Options {
	if o.Engine == "" {
		o.Engine = EngineGoja
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Source is the compilable form of an extracted snippet.
type Source struct {
	Kind Kind
	// Code defines one function and ends with a call to it using Kind.Param().
	Code string
	// Ops is set when the snippet reduces to split/reverse/splice/swap/join.
	Ops []Op
}

// Compile turns src into a Program. Compilation happens once; every Run
// starts from a clean runtime.
func Compile(src Source, opts Options) (Program, error) {
	opts = opts.normalize()
	if len(src.Ops) > 0 && !opts.DisableNative {
		return &nativeProgram{kind: src.Kind, ops: append([]Op(nil), src.Ops...)}, nil
	}
	switch opts.Engine {
	case EngineGoja:
		return compileGoja(src, opts.Timeout)
	case EngineOtto:
		return compileOtto(src, opts.Timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Engine)
	}
}

// TransformExecutionError reports a failed compile or run of a transform.
type TransformExecutionError struct {
	Kind  Kind
	Input string
	Stage string
	Err   error
}

func (e *TransformExecutionError) Error() string {
	if e.Stage == "compile" {
		return fmt.Sprintf("compile %s transform: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("run %s transform on %q: %v", e.Kind, e.Input, e.Err)
}

func (e *TransformExecutionError) Unwrap() error {
	return e.Err
}

func runError(kind Kind, input string, err error) error {
	return &TransformExecutionError{Kind: kind, Input: input, Stage: "run", Err: err}
}

func compileError(kind Kind, err error) error {
	return &TransformExecutionError{Kind: kind, Stage: "compile", Err: err}
}
