package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_ProducesDistinctValidULIDs(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(a))
	assert.Len(t, a, 26)
}

func TestValid_RejectsGarbage(t *testing.T) {
	assert.False(t, Valid("not-a-ulid"))
	assert.False(t, Valid(""))
}
