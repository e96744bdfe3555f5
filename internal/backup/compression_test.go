package backup

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte(`{"model":"node_rates","hourly_rate":"12.5"}`), 200)

	for _, ct := range []CompressionType{CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd} {
		t.Run(string(ct), func(t *testing.T) {
			compressed, stats, err := Compress(data, ct)
			require.NoError(t, err)
			require.NotNil(t, stats)
			assert.Equal(t, ct, stats.Algorithm)
			assert.Equal(t, int64(len(data)), stats.OriginalSize)
			assert.Equal(t, int64(len(compressed)), stats.CompressedSize)
			if ct != CompressionTypeNone {
				assert.Less(t, stats.Ratio, 1.0, "repetitive JSON must compress")
			}

			restored, err := Decompress(compressed, ct)
			require.NoError(t, err)
			assert.Equal(t, data, restored)
		})
	}
}

func TestCompressUnsupportedAlgorithm(t *testing.T) {
	_, _, err := Compress([]byte("x"), CompressionType("brotli"))
	require.Error(t, err)
	assert.True(t, IsErrorType(err, SyncErrorTypeCompression))

	_, err = Decompress([]byte("x"), CompressionType("brotli"))
	assert.Error(t, err)
}

func TestDecompressCorruptedInput(t *testing.T) {
	_, err := Decompress([]byte("definitely not a gzip stream"), CompressionTypeGzip)
	require.Error(t, err)
	assert.True(t, IsErrorType(err, SyncErrorTypeCompression))
}

func TestArchiveExtension(t *testing.T) {
	assert.Equal(t, ".tar.gz", ArchiveExtension(CompressionTypeGzip))
	assert.Equal(t, ".tar.lz4", ArchiveExtension(CompressionTypeLZ4))
	assert.Equal(t, ".tar.zst", ArchiveExtension(CompressionTypeZstd))
	assert.Equal(t, ".tar", ArchiveExtension(CompressionTypeNone))
	assert.Equal(t, ".tar", ArchiveExtension(CompressionType("unknown")))
}

func TestCompressionTypeForName(t *testing.T) {
	assert.Equal(t, CompressionTypeGzip, CompressionTypeForName("export-1.tar.gz"))
	assert.Equal(t, CompressionTypeGzip, CompressionTypeForName("export-1.tgz"))
	assert.Equal(t, CompressionTypeLZ4, CompressionTypeForName("export-1.tar.lz4"))
	assert.Equal(t, CompressionTypeZstd, CompressionTypeForName("export-1.tar.zst"))
	assert.Equal(t, CompressionTypeNone, CompressionTypeForName("export-1.tar"))
}
