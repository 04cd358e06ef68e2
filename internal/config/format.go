package config

import (
	"fmt"
	"strings"
)

// ArchiveFormat selects the container and compression used for snapshots.
type ArchiveFormat string

const (
	FormatZip    ArchiveFormat = "zip"
	FormatTarGz  ArchiveFormat = "tar.gz"
	FormatTarZst ArchiveFormat = "tar.zst"
)

// Valid reports whether f is one of the supported formats.
func (f ArchiveFormat) Valid() bool {
	switch f {
	case FormatZip, FormatTarGz, FormatTarZst:
		return true
	}
	return false
}

// Extension is the file suffix (without the leading dot) snapshots of this
// format carry on disk.
func (f ArchiveFormat) Extension() string { return string(f) }

// UnmarshalText accepts the canonical names plus a few spellings operators
// tend to write: ".zip", "TGZ", "zstd".
func (f *ArchiveFormat) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(string(text)), "."))
	switch s {
	case "zip":
		*f = FormatZip
	case "tar.gz", "tgz", "gzip":
		*f = FormatTarGz
	case "tar.zst", "tzst", "zst", "zstd":
		*f = FormatTarZst
	default:
		return fmt.Errorf("unknown archive format %q", string(text))
	}
	return nil
}

// MarshalText keeps the YAML dump in canonical form.
func (f ArchiveFormat) MarshalText() ([]byte, error) {
	return []byte(f), nil
}
