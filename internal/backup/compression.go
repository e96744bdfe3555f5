package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionStats describes one archive compression pass.
type CompressionStats struct {
	OriginalSize   int64           `json:"original_size"`
	CompressedSize int64           `json:"compressed_size"`
	Ratio          float64         `json:"ratio"`
	Algorithm      CompressionType `json:"algorithm"`
}

// compressionExtensions maps an algorithm to the archive file extension it
// produces.
var compressionExtensions = map[CompressionType]string{
	CompressionTypeNone: ".tar",
	CompressionTypeGzip: ".tar.gz",
	CompressionTypeLZ4:  ".tar.lz4",
	CompressionTypeZstd: ".tar.zst",
}

// ArchiveExtension returns the file extension for archives compressed with
// the given algorithm.
func ArchiveExtension(ct CompressionType) string {
	if ext, ok := compressionExtensions[ct]; ok {
		return ext
	}
	return ".tar"
}

// CompressionTypeForName infers the compression algorithm from an archive
// file name.
func CompressionTypeForName(name string) CompressionType {
	switch {
	case hasSuffix(name, ".tar.gz"), hasSuffix(name, ".tgz"):
		return CompressionTypeGzip
	case hasSuffix(name, ".tar.lz4"):
		return CompressionTypeLZ4
	case hasSuffix(name, ".tar.zst"):
		return CompressionTypeZstd
	default:
		return CompressionTypeNone
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// Compress compresses archive bytes with the given algorithm.
func Compress(data []byte, ct CompressionType) ([]byte, *CompressionStats, error) {
	var out []byte
	switch ct {
	case CompressionTypeNone:
		out = data
	case CompressionTypeGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, nil, NewCompressionError("failed to gzip archive", err)
		}
		if err := w.Close(); err != nil {
			return nil, nil, NewCompressionError("failed to finish gzip stream", err)
		}
		out = buf.Bytes()
	case CompressionTypeLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, nil, NewCompressionError("failed to lz4-compress archive", err)
		}
		if err := w.Close(); err != nil {
			return nil, nil, NewCompressionError("failed to finish lz4 stream", err)
		}
		out = buf.Bytes()
	case CompressionTypeZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, nil, NewCompressionError("failed to create zstd encoder", err)
		}
		out = enc.EncodeAll(data, make([]byte, 0, len(data)))
		enc.Close()
	default:
		return nil, nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", ct), nil)
	}

	stats := &CompressionStats{
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(out)),
		Algorithm:      ct,
		Ratio:          1.0,
	}
	if len(data) > 0 {
		stats.Ratio = float64(len(out)) / float64(len(data))
	}
	return out, stats, nil
}

// Decompress reverses Compress for the given algorithm.
func Decompress(data []byte, ct CompressionType) ([]byte, error) {
	switch ct {
	case CompressionTypeNone:
		return data, nil
	case CompressionTypeGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, NewCompressionError("failed to open gzip stream", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, NewCompressionError("failed to decompress gzip archive", err)
		}
		return out, nil
	case CompressionTypeLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, NewCompressionError("failed to decompress lz4 archive", err)
		}
		return out, nil
	case CompressionTypeZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, NewCompressionError("failed to create zstd decoder", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, NewCompressionError("failed to decompress zstd archive", err)
		}
		return out, nil
	default:
		return nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", ct), nil)
	}
}
