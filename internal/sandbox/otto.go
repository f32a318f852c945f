package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/robertkrimen/otto"
)

type ottoProgram struct {
	kind    Kind
	script  *otto.Script
	timeout time.Duration
}

func compileOtto(src Source, timeout time.Duration) (Program, error) {
	script, err := otto.New().Compile("ytcipher-"+string(src.Kind)+".js", src.Code)
	if err != nil {
		return nil, compileError(src.Kind, err)
	}
	return &ottoProgram{kind: src.Kind, script: script, timeout: timeout}, nil
}

func (p *ottoProgram) Kind() Kind { return p.kind }

var errOttoHalt = errors.New("otto halt")

func (p *ottoProgram) Run(input string) (out string, err error) {
	vm := otto.New()
	if err := vm.Set(p.kind.Param(), input); err != nil {
		return "", runError(p.kind, input, err)
	}

	if p.timeout > 0 {
		vm.Interrupt = make(chan func(), 1)
		timer := time.AfterFunc(p.timeout, func() {
			vm.Interrupt <- func() { panic(errOttoHalt) }
		})
		defer timer.Stop()
	}

	defer func() {
		if r := recover(); r != nil {
			if r == errOttoHalt {
				err = runError(p.kind, input, ErrTimeout)
				return
			}
			err = runError(p.kind, input, fmt.Errorf("panic: %v", r))
		}
	}()

	value, err := vm.Run(p.script)
	if err != nil {
		return "", runError(p.kind, input, err)
	}
	if !value.IsString() {
		return "", runError(p.kind, input, ErrNonStringOutput)
	}
	out = value.String()
	if out == "" {
		return "", runError(p.kind, input, ErrEmptyOutput)
	}
	return out, nil
}
