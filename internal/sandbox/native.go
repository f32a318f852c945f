package sandbox

import (
	"fmt"
	"unicode/utf16"
)

type OpCode uint8

const (
	OpReverse OpCode = iota + 1
	OpSplice
	OpSlice
	OpSwap
)

func (c OpCode) String() string {
	switch c {
	case OpReverse:
		return "reverse"
	case OpSplice:
		return "splice"
	case OpSlice:
		return "slice"
	case OpSwap:
		return "swap"
	}
	return fmt.Sprintf("op(%d)", uint8(c))
}

// Op is one step of a signature scramble.
type Op struct {
	Code OpCode
	Arg  int
}

type nativeProgram struct {
	kind Kind
	ops  []Op
}

func (p *nativeProgram) Kind() Kind { return p.kind }

// Run works on UTF-16 code units, the unit JS arrays of a split string hold.
func (p *nativeProgram) Run(input string) (string, error) {
	units := utf16.Encode([]rune(input))
	for _, op := range p.ops {
		switch op.Code {
		case OpReverse:
			units = reverseUnits(units)
		case OpSplice:
			units = spliceUnits(units, op.Arg)
		case OpSlice:
			units = sliceUnits(units, op.Arg)
		case OpSwap:
			units = swapUnits(units, op.Arg)
		default:
			return "", runError(p.kind, input, fmt.Errorf("unsupported op %s", op.Code))
		}
	}
	if len(units) == 0 {
		return "", runError(p.kind, input, ErrEmptyOutput)
	}
	return string(utf16.Decode(units)), nil
}

// spliceUnits is a.splice(0,n): a negative count removes nothing, a count
// past the end removes everything.
func spliceUnits(units []uint16, n int) []uint16 {
	if n < 0 {
		return units
	}
	if n > len(units) {
		n = len(units)
	}
	return units[n:]
}

// sliceUnits is a.slice(n), counting from the end when n is negative.
func sliceUnits(units []uint16, n int) []uint16 {
	if n < 0 {
		n += len(units)
		if n < 0 {
			n = 0
		}
	}
	if n > len(units) {
		n = len(units)
	}
	return units[n:]
}

func swapUnits(units []uint16, arg int) []uint16 {
	if len(units) == 0 {
		return units
	}
	pos := arg % len(units)
	if pos < 0 {
		pos += len(units)
	}
	units[0], units[pos] = units[pos], units[0]
	return units
}

func reverseUnits(units []uint16) []uint16 {
	for l, r := 0, len(units)-1; l < r; l, r = l+1, r-1 {
		units[l], units[r] = units[r], units[l]
	}
	return units
}
