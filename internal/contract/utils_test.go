package contract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{95, StrongValue},
		{70, StrongValue},
		{69.9, SolidValue},
		{50, SolidValue},
		{35, FairValue},
		{34.9, WeakValue},
		{0, WeakValue},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetPlainLabel(tt.score), "score %.1f", tt.score)
	}
}

func TestGetColorLabelContainsText(t *testing.T) {
	assert.Contains(t, GetColorLabel(80), StrongValue)
	assert.Contains(t, GetColorLabel(10), WeakValue)
}

func TestGetImpactLabel(t *testing.T) {
	assert.Equal(t, "high", GetImpactLabel(schema.ImpactHigh, false))
	assert.Contains(t, GetImpactLabel(schema.ImpactLow, true), "low")
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abcdefg...", TruncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "abc", TruncateText("abc", 2))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		assert.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("perhaps")
	assert.Error(t, err)
}

func TestFetchErrorClassification(t *testing.T) {
	timeout := NewFetchError("get tree", "", context.DeadlineExceeded)
	assert.True(t, timeout.Retryable())
	assert.ErrorIs(t, timeout, ErrFetchTimeout)
	assert.Equal(t, "get tree: fetch timed out: context deadline exceeded", timeout.Error())

	limited := NewFetchError("get content", "main.go", fmt.Errorf("%w: reset in 10m", ErrRateLimited))
	assert.True(t, limited.Retryable())
	assert.Contains(t, limited.Error(), "get content main.go")

	missing := NewFetchError("get content", "gone.go", ErrNotFound)
	assert.False(t, missing.Retryable())
	assert.True(t, IsNotFound(missing))

	var fe *FetchError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", missing), &fe))
	assert.Equal(t, "gone.go", fe.Path)
}

func TestNormalizeFetchError(t *testing.T) {
	assert.NoError(t, NormalizeFetchError(nil))
	plain := errors.New("boom")
	assert.Equal(t, plain, NormalizeFetchError(plain))
	assert.ErrorIs(t, NormalizeFetchError(context.DeadlineExceeded), ErrFetchTimeout)
	assert.False(t, IsRetryable(plain))
}
