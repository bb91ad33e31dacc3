// Package compression provides the streaming codecs the reader and writer
// wrap around file sinks and sources. Formats are recognized by filename
// suffix; the engine itself never implements a codec.
//
// Read side: gzip, bzip2, xz, zip (first entry), zstd, lz4, snappy, s2.
// Write side: gzip, bzip2, xz, zstd, lz4, snappy, s2. Zip output is not
// supported; the writer reports a codec error for ".zip" sinks.
package compression

import (
	"archive/zip"
	"io"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/ajitpratap0/tabular/pkg/errors"
)

// Format identifies a compression framing
type Format string

const (
	// None means the stream is raw bytes
	None Format = "none"
	// Gzip is RFC 1952 framing (.gz)
	Gzip Format = "gzip"
	// Bzip2 is bzip2 framing (.bz2)
	Bzip2 Format = "bzip2"
	// XZ is xz framing (.xz)
	XZ Format = "xz"
	// Zip is a zip archive; only the first entry is read (.zip)
	Zip Format = "zip"
	// Zstd is zstandard framing (.zst)
	Zstd Format = "zstd"
	// LZ4 is lz4 frame format (.lz4)
	LZ4 Format = "lz4"
	// Snappy is snappy stream framing (.sz)
	Snappy Format = "snappy"
	// S2 is s2 stream framing (.s2)
	S2 Format = "s2"
)

// Level controls the speed/ratio trade-off for write-side codecs
type Level int

const (
	// Fastest prioritizes speed over ratio
	Fastest Level = 1
	// Default balances speed and ratio
	Default Level = 5
	// Best maximizes ratio
	Best Level = 9
)

// Detect returns the format implied by a path's suffix
func Detect(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".bz2":
		return Bzip2
	case ".xz":
		return XZ
	case ".zip":
		return Zip
	case ".zst":
		return Zstd
	case ".lz4":
		return LZ4
	case ".sz":
		return Snappy
	case ".s2":
		return S2
	default:
		return None
	}
}

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }

// NewReader wraps r with the decoder for format. Zip streams cannot be
// decoded from a plain reader; use OpenZip instead.
func NewReader(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case None:
		return nopReadCloser{r}, nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "gzip decoder")
		}
		return gr, nil
	case Bzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "bzip2 decoder")
		}
		return br, nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "xz decoder")
		}
		return nopReadCloser{xr}, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "zstd decoder")
		}
		return readCloser{zr.IOReadCloser(), func() error { return nil }}, nil
	case LZ4:
		return nopReadCloser{lz4.NewReader(r)}, nil
	case Snappy:
		return nopReadCloser{snappy.NewReader(r)}, nil
	case S2:
		return nopReadCloser{s2.NewReader(r)}, nil
	case Zip:
		return nil, errors.New(errors.KindCodec, "zip requires random access, use OpenZip")
	default:
		return nil, errors.Newf(errors.KindCodec, "unknown compression format %q", format)
	}
}

// OpenZip returns a reader over the first file entry of a zip archive
func OpenZip(ra io.ReaderAt, size int64) (io.ReadCloser, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindCodec, "zip decoder")
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "zip entry open")
		}
		return rc, nil
	}
	return nil, errors.New(errors.KindCodec, "zip archive contains no file entries")
}

// NewWriter wraps w with the encoder for format
func NewWriter(w io.Writer, format Format, level Level) (io.WriteCloser, error) {
	switch format {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, gzipLevel(level))
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "gzip encoder")
		}
		return gw, nil
	case Bzip2:
		bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2Level(level)})
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "bzip2 encoder")
		}
		return bw, nil
	case XZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "xz encoder")
		}
		return xw, nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, errors.Wrap(err, errors.KindCodec, "zstd encoder")
		}
		return zw, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case S2:
		return s2.NewWriter(w), nil
	case Zip:
		return nil, errors.New(errors.KindCodec, "zip output is not supported")
	default:
		return nil, errors.Newf(errors.KindCodec, "unknown compression format %q", format)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func gzipLevel(level Level) int {
	switch {
	case level <= Fastest:
		return gzip.BestSpeed
	case level >= Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func bzip2Level(level Level) int {
	switch {
	case level <= Fastest:
		return bzip2.BestSpeed
	case level >= Best:
		return bzip2.BestCompression
	default:
		return bzip2.DefaultCompression
	}
}

func zstdLevel(level Level) zstd.EncoderLevel {
	switch {
	case level <= Fastest:
		return zstd.SpeedFastest
	case level >= Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
