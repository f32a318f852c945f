package challenge

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/famomatic/ytcipher/internal/sandbox"
)

// DefaultMemoSize bounds solved challenges kept per program.
const DefaultMemoSize = 256

type memoProgram struct {
	base   sandbox.Program
	solved *lru.Cache
}

// Memoize caches successful outputs of a pure program by input. Failures are
// not cached. A nil program stays nil.
func Memoize(p sandbox.Program, size int) sandbox.Program {
	if p == nil {
		return nil
	}
	if size <= 0 {
		size = DefaultMemoSize
	}
	solved, err := lru.New(size)
	if err != nil {
		return p
	}
	return &memoProgram{base: p, solved: solved}
}

func (m *memoProgram) Kind() sandbox.Kind { return m.base.Kind() }

func (m *memoProgram) Run(input string) (string, error) {
	if v, ok := m.solved.Get(input); ok {
		return v.(string), nil
	}
	out, err := m.base.Run(input)
	if err != nil {
		return "", err
	}
	m.solved.Add(input, out)
	return out, nil
}
