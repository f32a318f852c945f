package sandbox

import (
	"errors"
	"time"

	"github.com/dop251/goja"
)

type gojaProgram struct {
	kind    Kind
	program *goja.Program
	timeout time.Duration
}

func compileGoja(src Source, timeout time.Duration) (Program, error) {
	prog, err := goja.Compile("ytcipher-"+string(src.Kind)+".js", src.Code, false)
	if err != nil {
		return nil, compileError(src.Kind, err)
	}
	return &gojaProgram{kind: src.Kind, program: prog, timeout: timeout}, nil
}

func (p *gojaProgram) Kind() Kind { return p.kind }

// Run executes the program in a runtime that only knows the ECMAScript
// builtins and the input variable.
func (p *gojaProgram) Run(input string) (string, error) {
	vm := goja.New()
	if err := vm.Set(p.kind.Param(), input); err != nil {
		return "", runError(p.kind, input, err)
	}
	if p.timeout > 0 {
		timer := time.AfterFunc(p.timeout, func() {
			vm.Interrupt(ErrTimeout)
		})
		defer timer.Stop()
	}

	value, err := vm.RunProgram(p.program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return "", runError(p.kind, input, ErrTimeout)
		}
		return "", runError(p.kind, input, err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return "", runError(p.kind, input, ErrNonStringOutput)
	}
	out, ok := value.Export().(string)
	if !ok {
		return "", runError(p.kind, input, ErrNonStringOutput)
	}
	if out == "" {
		return "", runError(p.kind, input, ErrEmptyOutput)
	}
	return out, nil
}

// EvalStrings runs code in a fresh runtime and exports the array bound to
// name. It is used to materialize lookup tables such as `var K="..".split(";")`.
func EvalStrings(code, name string) ([]string, error) {
	vm := goja.New()
	timer := time.AfterFunc(DefaultTimeout, func() {
		vm.Interrupt(ErrTimeout)
	})
	defer timer.Stop()

	if _, err := vm.RunString(code + ";\n"); err != nil {
		return nil, err
	}
	var out []string
	if err := vm.ExportTo(vm.Get(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}
