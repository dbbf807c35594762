package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUp(t *testing.T) {
	assert.Equal(t, uint64(0), RoundUp(0, 4096))
	assert.Equal(t, uint64(1), RoundUp(1, 4096))
	assert.Equal(t, uint64(1), RoundUp(4096, 4096))
	assert.Equal(t, uint64(2), RoundUp(4097, 4096))
}

func TestMin(t *testing.T) {
	assert.Equal(t, uint64(2), Min(2, 3))
	assert.Equal(t, uint64(2), Min(3, 2))
	assert.Equal(t, int64(-1), Min64(-1, 0))
	assert.Equal(t, int64(7), Max64(7, 3))
}
