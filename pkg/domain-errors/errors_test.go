package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outermost code", func(t *testing.T) {
		err := Wrap(New(CodeConflict, "dup"), CodeInternal, "insert failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("step: %w", New(CodeTimeout, "deadline"))
		assert.True(t, HasCode(err, CodeTimeout))
		assert.Equal(t, "deadline", MessageOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, Code(""), CodeOf(nil))
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "x"))
	})
}
