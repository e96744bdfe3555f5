package backup

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveMetadata describes a packed export archive. It travels alongside
// the blob in remote storage so archives can be listed and validated
// without downloading them.
type ArchiveMetadata struct {
	ExportID    string          `json:"export_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Compression CompressionType `json:"compression"`
	Encrypted   bool            `json:"encrypted"`
	Size        int64           `json:"size"`
	SHA256      string          `json:"sha256"`
}

// PackArchive tars an export directory, compresses it and optionally
// encrypts it with a passphrase. The export id is read from the directory's
// root manifest when present.
func PackArchive(dir string, ct CompressionType, passphrase string) ([]byte, *ArchiveMetadata, error) {
	if !isValidCompressionType(ct) {
		return nil, nil, NewCompressionError(fmt.Sprintf("unsupported compression algorithm: %s", ct), nil)
	}

	tarBytes, err := tarDirectory(dir)
	if err != nil {
		return nil, nil, err
	}
	blob, _, err := Compress(tarBytes, ct)
	if err != nil {
		return nil, nil, err
	}

	encrypted := passphrase != ""
	if encrypted {
		blob, err = EncryptArchive(blob, passphrase)
		if err != nil {
			return nil, nil, err
		}
	}

	meta := &ArchiveMetadata{
		CreatedAt:   time.Now().UTC(),
		Compression: ct,
		Encrypted:   encrypted,
		Size:        int64(len(blob)),
		SHA256:      hexDigest(blob),
	}
	if root, err := LoadRootManifest(dir); err == nil {
		meta.ExportID = root.ExportID
	} else if m, err := LoadManifest(dir); err == nil {
		meta.ExportID = m.ExportID
	}
	return blob, meta, nil
}

// UnpackArchive reverses PackArchive into the destination directory. The
// metadata's digest, when given, is verified before anything is written.
func UnpackArchive(blob []byte, meta *ArchiveMetadata, dest, passphrase string) error {
	if meta != nil && meta.SHA256 != "" && hexDigest(blob) != meta.SHA256 {
		return NewCorruptionError("archive digest mismatch; the archive has been modified in transit", nil)
	}

	var err error
	if meta != nil && meta.Encrypted {
		if passphrase == "" {
			return NewEncryptionError("archive is encrypted; a passphrase is required", nil)
		}
		blob, err = DecryptArchive(blob, passphrase)
		if err != nil {
			return err
		}
	}

	ct := CompressionTypeNone
	if meta != nil {
		ct = meta.Compression
	}
	tarBytes, err := Decompress(blob, ct)
	if err != nil {
		return err
	}
	return untarDirectory(tarBytes, dest)
}

func hexDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// tarDirectory packs every regular file under dir into a tar stream with
// slash-separated relative paths.
func tarDirectory(dir string) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to archive directory %s", dir), err)
	}
	if err := tw.Close(); err != nil {
		return nil, NewStorageError("failed to finish archive stream", err)
	}
	return buf.Bytes(), nil
}

// untarDirectory unpacks a tar stream under dest, refusing entries that
// would escape it.
func untarDirectory(data []byte, dest string) error {
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewStorageError("failed to read archive entry", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.FromSlash(hdr.Name)
		if strings.Contains(name, "..") || filepath.IsAbs(name) {
			return NewValidationError(fmt.Sprintf("archive entry %q escapes the destination directory", hdr.Name), nil)
		}
		path := filepath.Join(dest, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return NewStorageError(fmt.Sprintf("failed to create directory for %s", path), err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return NewStorageError(fmt.Sprintf("failed to create %s", path), err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return NewStorageError(fmt.Sprintf("failed to write %s", path), err)
		}
		if err := f.Close(); err != nil {
			return NewStorageError(fmt.Sprintf("failed to close %s", path), err)
		}
	}
}
