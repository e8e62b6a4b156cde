package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "exact", TruncateString("exact", 5))

	truncated := TruncateString(strings.Repeat("x", 100), 10)
	assert.Len(t, truncated, 10)
	assert.True(t, strings.HasSuffix(truncated, "..."))

	assert.Equal(t, "ab", TruncateString("abcdef", 2))
	assert.Equal(t, "abcdef", TruncateString("abcdef", 0))
}

func TestGetOrDefault(t *testing.T) {
	value := 42

	assert.Equal(t, 42, GetOrDefault(&value, 100))
	assert.Equal(t, 100, GetOrDefault[int](nil, 100))
}

func TestPtr(t *testing.T) {
	p := Ptr("hello")

	assert.NotNil(t, p)
	assert.Equal(t, "hello", *p)
}

func TestNow_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Now().Location())
}
