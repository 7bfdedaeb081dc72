package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		isText bool
	}{
		{"empty", []byte{}, true},
		{"plain text", []byte("hello world\n"), true},
		{"utf8", []byte("héllo wörld"), true},
		{"null byte", []byte("abc\x00def"), false},
		{"invalid utf8", []byte{0xff, 0xfe, 0xfd}, false},
		{"control chars", []byte("\x01\x02\x03\x04abc"), false},
		{"tabs and newlines", []byte("a\tb\r\nc\n"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isText, DetectFileType(tt.data), "DetectFileType(%q)", tt.data)
		})
	}
}

func TestDetectFileTypeSampleBoundary(t *testing.T) {
	// A two-byte rune straddling the sample boundary is still text.
	data := []byte(strings.Repeat("a", BinarySampleSize-1) + "é" + "tail")
	assert.True(t, DetectFileType(data))
}

func TestCompareFiles(t *testing.T) {
	assert.True(t, CompareFiles([]byte("same"), []byte("same")))
	assert.False(t, CompareFiles([]byte("one"), []byte("two")))
}

func TestGenerateUnifiedDiff(t *testing.T) {
	diff, err := GenerateUnifiedDiff("notes.txt", []byte("line1\nline2\n"), []byte("line1\nchanged\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(diff, "--- a/notes.txt\n+++ b/notes.txt\n"), "missing headers: %q", diff)
	assert.Contains(t, diff, "-line2")
	assert.Contains(t, diff, "+changed")
}

func TestGenerateUnifiedDiffIdentical(t *testing.T) {
	diff, err := GenerateUnifiedDiff("same.txt", []byte("x"), []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestGenerateUnifiedDiffBinary(t *testing.T) {
	diff, err := GenerateUnifiedDiff("img.bin", []byte{0, 1, 2}, []byte{0, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, "Binary file img.bin has changed\n", diff)
}
