package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "12345678901234567890", Truncate("12345678901234567890", 20))
	assert.Equal(t, "1234567890... [truncated, 20 bytes total]", Truncate("1234567890abcdefghij", 10))
	assert.Equal(t, "", Truncate("", 10))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	got := Truncate("ééééé", 3)
	assert.True(t, strings.HasPrefix(got, "é..."), got)
}

func TestTruncateBody(t *testing.T) {
	assert.Equal(t, "not found", TruncateBody([]byte("  not found\n")))
	long := strings.Repeat("x", MaxBodyLen+10)
	assert.Contains(t, TruncateBody([]byte(long)), "[truncated, 1034 bytes total]")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", Mask(""))
	assert.Equal(t, "s***", Mask("secret"))
	assert.Equal(t, "abcd...wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}
