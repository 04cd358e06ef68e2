package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/kebairia/snapback/internal/config"
)

// entryWriter adds directory and file entries to one archive container.
type entryWriter interface {
	AddDir(name string, info os.FileInfo) error
	AddFile(name string, info os.FileInfo, r io.Reader) error
	Close() error
}

func newEntryWriter(format config.ArchiveFormat, out io.Writer) (entryWriter, error) {
	switch format {
	case config.FormatZip:
		return &zipWriter{zw: zip.NewWriter(out)}, nil
	case config.FormatTarGz:
		gz, err := gzip.NewWriterLevel(out, gzip.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("create gzip writer: %w", err)
		}
		return newTarWriter(gz), nil
	case config.FormatTarZst:
		zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("create zstd writer: %w", err)
		}
		return newTarWriter(zw), nil
	default:
		return nil, fmt.Errorf("unsupported archive format %q", format)
	}
}

type zipWriter struct {
	zw *zip.Writer
}

func (w *zipWriter) AddDir(name string, info os.FileInfo) error {
	h, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	h.Name = name + "/"
	h.Method = zip.Store
	_, err = w.zw.CreateHeader(h)
	return err
}

func (w *zipWriter) AddFile(name string, info os.FileInfo, r io.Reader) error {
	h, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	h.Name = name
	h.Method = zip.Deflate
	dst, err := w.zw.CreateHeader(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

func (w *zipWriter) Close() error { return w.zw.Close() }

// tarWriter writes a tar stream into a compressor; Close flushes both in
// reverse order.
type tarWriter struct {
	tw      *tar.Writer
	closers []io.Closer
}

func newTarWriter(compressor io.WriteCloser) *tarWriter {
	tw := tar.NewWriter(compressor)
	return &tarWriter{tw: tw, closers: []io.Closer{compressor, tw}}
}

func (w *tarWriter) AddDir(name string, info os.FileInfo) error {
	h, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	h.Name = name + "/"
	return w.tw.WriteHeader(h)
}

func (w *tarWriter) AddFile(name string, info os.FileInfo, r io.Reader) error {
	h, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	h.Name = name
	if err := w.tw.WriteHeader(h); err != nil {
		return err
	}
	n, err := io.Copy(w.tw, r)
	if err != nil {
		return err
	}
	if n != h.Size {
		return fmt.Errorf("%s changed size while archiving: header %d, wrote %d", name, h.Size, n)
	}
	return nil
}

// Close returns the first error encountered.
func (w *tarWriter) Close() error {
	var firstErr error
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
