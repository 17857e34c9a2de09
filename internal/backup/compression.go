package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionManager compresses and decompresses offsite archive payloads.
// It supports gzip, lz4, and zstd; CompressionTypeNone passes data through.
type CompressionManager struct{}

// CompressionStats describes one compression run
type CompressionStats struct {
	Algorithm      CompressionType `json:"algorithm"`
	Level          int             `json:"level"`
	OriginalSize   int64           `json:"original_size"`
	CompressedSize int64           `json:"compressed_size"`
	Ratio          float64         `json:"ratio"`
	Duration       time.Duration   `json:"duration_ns"`
}

// NewCompressionManager creates a compression manager
func NewCompressionManager() *CompressionManager {
	return &CompressionManager{}
}

// Compress compresses data with the given algorithm. Levels outside the
// algorithm's range are clamped to its default.
func (m *CompressionManager) Compress(data []byte, algorithm CompressionType, level int) ([]byte, *CompressionStats, error) {
	start := time.Now()

	var compressed []byte
	var err error

	switch algorithm {
	case CompressionTypeNone:
		compressed = data
	case CompressionTypeGzip:
		compressed, err = gzipCompress(data, level)
	case CompressionTypeLZ4:
		compressed, err = lz4Compress(data, level)
	case CompressionTypeZstd:
		compressed, err = zstdCompress(data, level)
	default:
		return nil, nil, NewCompressionError(
			fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
	if err != nil {
		return nil, nil, NewCompressionError(
			fmt.Sprintf("%s compression failed", algorithm), err)
	}

	stats := &CompressionStats{
		Algorithm:      algorithm,
		Level:          level,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(compressed)),
		Duration:       time.Since(start),
	}
	if len(data) > 0 {
		stats.Ratio = float64(len(compressed)) / float64(len(data))
	}

	return compressed, stats, nil
}

// Decompress reverses Compress for the given algorithm
func (m *CompressionManager) Decompress(data []byte, algorithm CompressionType) ([]byte, error) {
	var decompressed []byte
	var err error

	switch algorithm {
	case CompressionTypeNone:
		return data, nil
	case CompressionTypeGzip:
		decompressed, err = gzipDecompress(data)
	case CompressionTypeLZ4:
		decompressed, err = lz4Decompress(data)
	case CompressionTypeZstd:
		decompressed, err = zstdDecompress(data)
	default:
		return nil, NewCompressionError(
			fmt.Sprintf("unsupported compression algorithm: %s", algorithm), nil)
	}
	if err != nil {
		return nil, NewCompressionError(
			fmt.Sprintf("%s decompression failed", algorithm), err)
	}

	return decompressed, nil
}

func gzipCompress(data []byte, level int) ([]byte, error) {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func lz4Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)

	// lz4 distinguishes the fast path from compression levels 1-9.
	if level > 6 {
		if err := writer.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, err
		}
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func lz4Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

func zstdCompress(data []byte, level int) ([]byte, error) {
	var encoderLevel zstd.EncoderLevel
	switch {
	case level <= 1:
		encoderLevel = zstd.SpeedFastest
	case level <= 3:
		encoderLevel = zstd.SpeedDefault
	case level <= 6:
		encoderLevel = zstd.SpeedBetterCompression
	default:
		encoderLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
