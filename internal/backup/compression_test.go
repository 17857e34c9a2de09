package backup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	manager := NewCompressionManager()
	payload := bytes.Repeat([]byte("memory store backup payload "), 200)

	tests := []struct {
		name      string
		algorithm CompressionType
		level     int
	}{
		{"gzip default", CompressionTypeGzip, 6},
		{"lz4 fast", CompressionTypeLZ4, 1},
		{"lz4 high", CompressionTypeLZ4, 9},
		{"zstd default", CompressionTypeZstd, 3},
		{"zstd best", CompressionTypeZstd, 9},
		{"none", CompressionTypeNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, stats, err := manager.Compress(payload, tt.algorithm, tt.level)
			require.NoError(t, err)
			require.NotNil(t, stats)

			assert.Equal(t, tt.algorithm, stats.Algorithm)
			assert.Equal(t, int64(len(payload)), stats.OriginalSize)
			assert.Equal(t, int64(len(compressed)), stats.CompressedSize)

			if tt.algorithm == CompressionTypeNone {
				assert.Equal(t, payload, compressed)
				assert.Equal(t, 1.0, stats.Ratio)
			} else {
				assert.Less(t, len(compressed), len(payload))
			}

			decompressed, err := manager.Decompress(compressed, tt.algorithm)
			require.NoError(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}
}

func TestCompressionUnknownAlgorithm(t *testing.T) {
	manager := NewCompressionManager()

	_, _, err := manager.Compress([]byte("data"), CompressionType("BROTLI"), 1)
	assert.True(t, IsErrorType(err, BackupErrorTypeCompression))

	_, err = manager.Decompress([]byte("data"), CompressionType("BROTLI"))
	assert.True(t, IsErrorType(err, BackupErrorTypeCompression))
}

// Out-of-range gzip levels fall back to the default level instead of failing.
func TestCompressionClampsGzipLevel(t *testing.T) {
	manager := NewCompressionManager()
	payload := bytes.Repeat([]byte("clamped "), 100)

	for _, level := range []int{-5, 0, 42} {
		compressed, _, err := manager.Compress(payload, CompressionTypeGzip, level)
		require.NoError(t, err)

		decompressed, err := manager.Decompress(compressed, CompressionTypeGzip)
		require.NoError(t, err)
		assert.Equal(t, payload, decompressed)
	}
}

func TestCompressionRejectsCorruptInput(t *testing.T) {
	manager := NewCompressionManager()

	_, err := manager.Decompress([]byte("not a gzip stream"), CompressionTypeGzip)
	assert.True(t, IsErrorType(err, BackupErrorTypeCompression))

	_, err = manager.Decompress([]byte("not a zstd frame"), CompressionTypeZstd)
	assert.True(t, IsErrorType(err, BackupErrorTypeCompression))
}

func TestCompressionEmptyPayload(t *testing.T) {
	manager := NewCompressionManager()

	compressed, stats, err := manager.Compress(nil, CompressionTypeZstd, 3)
	require.NoError(t, err)
	assert.Zero(t, stats.OriginalSize)

	decompressed, err := manager.Decompress(compressed, CompressionTypeZstd)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}
