package syshealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetNeverPanics(t *testing.T) {
	h := Get()
	assert.GreaterOrEqual(t, h.MemoryPercent, 0.0)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 12.3, round1(12.34))
	assert.Equal(t, 12.4, round1(12.35))
}

func TestIsAlpha(t *testing.T) {
	assert.True(t, isAlpha('a'))
	assert.True(t, isAlpha('Z'))
	assert.False(t, isAlpha('1'))
}
