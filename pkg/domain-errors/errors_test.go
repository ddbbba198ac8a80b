package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	t.Run("direct coded error", func(t *testing.T) {
		err := New(CodeValidation, "missing input")
		require.Equal(t, CodeValidation, CodeOf(err))
	})

	t.Run("wrapped coded error", func(t *testing.T) {
		err := fmt.Errorf("stage failed: %w", New(CodeKeyGeneration, "capability down"))
		require.Equal(t, CodeKeyGeneration, CodeOf(err))
	})

	t.Run("uncoded error defaults to internal", func(t *testing.T) {
		require.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeSigningService, "custodial request", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, CodeSigningService, CodeOf(err))
	require.Contains(t, err.Error(), "signing_service")
	require.Contains(t, err.Error(), "connection refused")
}

func TestHasCode(t *testing.T) {
	err := Newf(CodeMalformedOperation, "operation missing %s", "delta")
	require.True(t, HasCode(err, CodeMalformedOperation))
	require.False(t, HasCode(err, CodeValidation))
}
