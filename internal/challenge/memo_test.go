package challenge

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famomatic/ytcipher/internal/sandbox"
)

type countingProgram struct {
	calls int
	fail  bool
}

func (p *countingProgram) Kind() sandbox.Kind { return sandbox.KindN }

func (p *countingProgram) Run(input string) (string, error) {
	p.calls++
	if p.fail {
		return "", errors.New("boom")
	}
	return strings.ToUpper(input), nil
}

func TestMemoize_CachesSuccess(t *testing.T) {
	base := &countingProgram{}
	p := Memoize(base, 2)

	for i := 0; i < 3; i++ {
		got, err := p.Run("abc")
		require.NoError(t, err)
		assert.Equal(t, "ABC", got)
	}
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, sandbox.KindN, p.Kind())
}

func TestMemoize_DoesNotCacheFailure(t *testing.T) {
	base := &countingProgram{fail: true}
	p := Memoize(base, 2)

	_, err := p.Run("abc")
	require.Error(t, err)
	_, err = p.Run("abc")
	require.Error(t, err)
	assert.Equal(t, 2, base.calls)
}

func TestMemoize_Nil(t *testing.T) {
	assert.Nil(t, Memoize(nil, 4))
}
