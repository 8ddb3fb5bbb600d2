package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := NotFound("pack %s not found", "p1")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindConflict))
}

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("boom")
	err := ExternalProvider(cause, "checkout failed")
	wrapped := fmt.Errorf("change pack: %w", err)

	assert.Equal(t, KindExternalProvider, KindOf(wrapped))
	require.ErrorIs(t, wrapped, cause)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
