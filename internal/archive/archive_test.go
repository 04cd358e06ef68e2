package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/snapback/internal/config"
)

// sourceTree is written under a fresh source folder by makeSource.
var sourceTree = map[string]string{
	"readme.txt":          "hello",
	"docs/guide.md":       "# guide",
	"docs/deep/notes.txt": strings.Repeat("snapshot ", 500),
}

func makeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "source")
	for name, body := range sourceTree {
		path := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))
	return src
}

// readArchive returns file entries and their contents, plus directory names.
func readArchive(t *testing.T, format config.ArchiveFormat, path string) (map[string]string, []string) {
	t.Helper()
	files := map[string]string{}
	var dirs []string

	if format == config.FormatZip {
		zr, err := zip.OpenReader(path)
		require.NoError(t, err)
		defer zr.Close()
		for _, f := range zr.File {
			if strings.HasSuffix(f.Name, "/") {
				dirs = append(dirs, strings.TrimSuffix(f.Name, "/"))
				continue
			}
			rc, err := f.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			rc.Close()
			files[f.Name] = string(data)
		}
		sort.Strings(dirs)
		return files, dirs
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var r io.Reader
	switch format {
	case config.FormatTarGz:
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		require.NoError(t, err)
		r = gz
	case config.FormatTarZst:
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if h.Typeflag == tar.TypeDir {
			dirs = append(dirs, strings.TrimSuffix(h.Name, "/"))
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[h.Name] = string(data)
	}
	sort.Strings(dirs)
	return files, dirs
}

func TestCreate_RoundTrip(t *testing.T) {
	formats := []config.ArchiveFormat{config.FormatZip, config.FormatTarGz, config.FormatTarZst}
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			src := makeSource(t)
			destDir := t.TempDir()
			dest := filepath.Join(destDir, "backup_2026-10-19_22-00-00."+format.Extension())

			a, err := New(nil, format)
			require.NoError(t, err)

			snap, err := a.Create(context.Background(), src, dest)
			require.NoError(t, err)
			assert.Equal(t, "backup_2026-10-19_22-00-00", snap.Name)
			assert.Equal(t, dest, snap.Path)
			assert.Positive(t, snap.Size)
			assert.False(t, snap.CreatedAt.IsZero())

			info, err := os.Stat(dest)
			require.NoError(t, err)
			assert.Equal(t, FileMode, info.Mode().Perm())

			files, dirs := readArchive(t, format, dest)
			assert.Equal(t, sourceTree, files)
			assert.Equal(t, []string{"docs", "docs/deep", "empty"}, dirs)

			entries, err := os.ReadDir(destDir)
			require.NoError(t, err)
			require.Len(t, entries, 1, "no temporary file may be left behind")
		})
	}
}

func TestCreate_MissingSource(t *testing.T) {
	destDir := t.TempDir()
	a, err := New(nil, config.FormatZip)
	require.NoError(t, err)

	_, err = a.Create(context.Background(), filepath.Join(destDir, "nope"), filepath.Join(destDir, "x.zip"))
	require.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreate_SourceIsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("/b", 0o755))
	a, err := New(fs, config.FormatZip)
	require.NoError(t, err)

	_, err = a.Create(context.Background(), "/src", "/b/x.zip")
	assert.ErrorIs(t, err, ErrIO)
}

func TestCreate_DestinationOccupied(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.txt", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/x.zip", []byte("old"), 0o644))
	a, err := New(fs, config.FormatZip)
	require.NoError(t, err)

	_, err = a.Create(context.Background(), "/src", "/b/x.zip")
	require.ErrorIs(t, err, ErrAlreadyExists)

	data, err := afero.ReadFile(fs, "/b/x.zip")
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "existing file must be untouched")
}

// renameFailFs refuses every rename, as a full or read-only target would.
type renameFailFs struct{ afero.Fs }

func (renameFailFs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
}

func TestCreate_NoPartialFileOnFailure(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/src/a.txt", []byte("a"), 0o644))
	require.NoError(t, mem.MkdirAll("/b", 0o755))
	a, err := New(renameFailFs{mem}, config.FormatTarGz)
	require.NoError(t, err)

	_, err = a.Create(context.Background(), "/src", "/b/x.tar.gz")
	require.ErrorIs(t, err, ErrIO)

	entries, err := afero.ReadDir(mem, "/b")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteArchive_CompressorFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.txt", []byte(strings.Repeat("a", 1<<16)), 0o644))

	for _, format := range []config.ArchiveFormat{config.FormatZip, config.FormatTarGz, config.FormatTarZst} {
		t.Run(string(format), func(t *testing.T) {
			a, err := New(fs, format)
			require.NoError(t, err)

			err = a.writeArchive(context.Background(), failingWriter{}, "/src")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrArchive)
		})
	}
}

func TestCreate_CanceledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.txt", []byte("a"), 0o644))
	require.NoError(t, fs.MkdirAll("/b", 0o755))
	a, err := New(fs, config.FormatZip)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Create(ctx, "/src", "/b/x.zip")
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrIO)

	entries, err := afero.ReadDir(fs, "/b")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(nil, config.ArchiveFormat("rar"))
	assert.Error(t, err)
}
