package csvio

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/highwayhash"
	"github.com/ulikunitz/xz"

	"github.com/menta2k/annotation-review/pkg/types"
)

// CompressionType represents the compression format of an export
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionGzip
	CompressionBzip2
	CompressionXZ
)

// String returns the string representation of CompressionType
func (ct CompressionType) String() string {
	switch ct {
	case CompressionGzip:
		return "gzip"
	case CompressionBzip2:
		return "bzip2"
	case CompressionXZ:
		return "xz"
	default:
		return "none"
	}
}

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte{0x42, 0x5a, 0x68}
	xzMagic    = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	// xlsx files are zip archives
	zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}
)

var compressionExtensions = map[string]CompressionType{
	".gz":  CompressionGzip,
	".bz2": CompressionBzip2,
	".xz":  CompressionXZ,
}

// fingerprintKey keys the HighwayHash used for import fingerprints
var fingerprintKey = []byte("annotation-review/import/v1/key!")

// Loaded is a parsed export together with facts about its source
type Loaded struct {
	Table       types.Table
	Name        string
	Compression CompressionType
	Fingerprint string
	// Size is the length of the file as read, before decompression
	Size int64
}

// LoadFile reads and parses an export from disk
func LoadFile(ctx context.Context, path string) (Loaded, error) {
	if path == "" {
		return Loaded{}, fmt.Errorf("file path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return Loaded{}, err
	}
	defer f.Close()
	return Load(ctx, f, filepath.Base(path))
}

// Load reads and parses an export from r. name is used to detect the file
// type and compression; magic bytes take over when the name is not telling.
func Load(ctx context.Context, r io.Reader, name string) (Loaded, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Loaded{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return Loaded{}, err
	}

	out := Loaded{Name: name, Fingerprint: Fingerprint(data), Size: int64(len(data))}

	inner := strings.ToLower(name)
	out.Compression = CompressionNone
	if ct, ok := compressionExtensions[filepath.Ext(inner)]; ok {
		out.Compression = ct
		inner = strings.TrimSuffix(inner, filepath.Ext(inner))
	} else {
		out.Compression = DetectCompressionByMagic(data)
	}

	if out.Compression != CompressionNone {
		data, err = Decompress(data, out.Compression)
		if err != nil {
			return Loaded{}, fmt.Errorf("failed to decompress %s: %w", name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return Loaded{}, err
	}

	if strings.HasSuffix(inner, ".xlsx") || bytes.HasPrefix(data, zipMagic) {
		out.Table, err = ParseXLSX(data)
	} else {
		out.Table, err = ParseCSV(data)
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return out, nil
}

// DetectCompressionByMagic inspects the leading bytes of data
func DetectCompressionByMagic(data []byte) CompressionType {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(data, bzip2Magic):
		return CompressionBzip2
	case bytes.HasPrefix(data, xzMagic):
		return CompressionXZ
	default:
		return CompressionNone
	}
}

// Decompress inflates data compressed with ct
func Decompress(data []byte, ct CompressionType) ([]byte, error) {
	var r io.Reader
	switch ct {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case CompressionBzip2:
		r = bzip2.NewReader(bytes.NewReader(data))
	case CompressionXZ:
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		r = xr
	default:
		return nil, fmt.Errorf("unsupported compression %d", ct)
	}
	return io.ReadAll(r)
}

// Fingerprint returns a stable hex digest of an export's raw bytes
func Fingerprint(data []byte) string {
	sum := highwayhash.Sum(data, fingerprintKey)
	return hex.EncodeToString(sum[:])
}
