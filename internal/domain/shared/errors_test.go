package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	specific := NewDomainError("NOT_FOUND", "obligation 42 not found")

	assert.True(t, errors.Is(specific, ErrNotFound))
	assert.True(t, errors.Is(fmt.Errorf("load: %w", specific), ErrNotFound))
	assert.False(t, errors.Is(specific, ErrInvalidState))
	assert.False(t, errors.Is(specific, errors.New("NOT_FOUND")))
	assert.Equal(t, "obligation 42 not found", specific.Error())
}
