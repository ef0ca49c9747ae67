package backup

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodecRegistry(t *testing.T) {
	registry := NewCodecRegistry()

	require.NotNil(t, registry)

	expectedFormats := []string{"tar.gz", "tar.zst", "tar.lz4", "tar"}
	supported := registry.SupportedFormats()
	assert.Len(t, supported, len(expectedFormats))

	for _, format := range expectedFormats {
		codec, err := registry.Get(format)
		require.NoError(t, err, "format %s should be registered", format)
		assert.Equal(t, format, codec.Format())
	}
}

func TestCodecRegistry_Get_Unsupported(t *testing.T) {
	registry := NewCodecRegistry()

	_, err := registry.Get("7z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported archive format")

	_, err = registry.Get("")
	assert.Error(t, err)
}

func TestCodecExtensions(t *testing.T) {
	registry := NewCodecRegistry()

	tests := []struct {
		format string
		ext    string
	}{
		{"tar.gz", ".tar.gz"},
		{"tar.zst", ".tar.zst"},
		{"tar.lz4", ".tar.lz4"},
		{"tar", ".tar"},
	}

	for _, tt := range tests {
		codec, err := registry.Get(tt.format)
		require.NoError(t, err)
		assert.Equal(t, tt.ext, codec.Extension())
	}
}

func TestCodecRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("backup payload with enough repetition to compress well ", 200))

	registry := NewCodecRegistry()
	for _, format := range registry.SupportedFormats() {
		t.Run(format, func(t *testing.T) {
			codec, err := registry.Get(format)
			require.NoError(t, err)

			var buf bytes.Buffer
			writer, err := codec.Compress(&buf)
			require.NoError(t, err)

			_, err = writer.Write(payload)
			require.NoError(t, err)
			require.NoError(t, writer.Close())

			reader, err := codec.Decompress(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			defer reader.Close()

			restored, err := io.ReadAll(reader)
			require.NoError(t, err)

			assert.True(t, bytes.Equal(restored, payload), "round trip mismatch for %s", format)

			if format != "tar" {
				assert.Less(t, buf.Len(), len(payload), "expected %s to compress repetitive payload", format)
			}
		})
	}
}

func TestIsSupportedArchiveFormat(t *testing.T) {
	assert.True(t, IsSupportedArchiveFormat("tar.gz"))
	assert.True(t, IsSupportedArchiveFormat("tar.zst"))
	assert.True(t, IsSupportedArchiveFormat("tar.lz4"))
	assert.True(t, IsSupportedArchiveFormat("tar"))
	assert.False(t, IsSupportedArchiveFormat("zip"))
	assert.False(t, IsSupportedArchiveFormat("gztar"))
}
