package trendreport

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"
	"os"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// Magic byte signatures from https://stackoverflow.com/a/19127748/199475
var compressionSigs = map[string][]byte{
	"gzip":  {0x1f, 0x8b, 0x08},
	"zip":   {0x50, 0x4b, 0x03, 0x04},
	"xz":    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	"zlib":  {0x1f, 0x9d},
	"bzip2": {0x42, 0x5a, 0x68},
}

// OpenDataFile opens path and transparently decompresses its contents when
// the file starts with a known compression signature. Sequencing pipelines
// frequently emit gzipped tables, so callers never need to care whether the
// export was compressed.
func OpenDataFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := MaybeDecompress(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &wrappedCloser{Reader: r, underlying: f}, nil
}

// MaybeDecompress sniffs the leading bytes of r and, if they match a known
// compression format, returns a decompressing reader. Unrecognized content is
// passed through unchanged.
func MaybeDecompress(r io.Reader) (io.Reader, error) {
	buffered := bufio.NewReader(r)

	head, err := buffered.Peek(6)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch detectCompression(head) {
	case "gzip":
		return gzip.NewReader(buffered)
	case "zip":
		return zipstream.NewReader(buffered), nil
	case "bzip2":
		return bzip2.NewReader(buffered), nil
	case "xz":
		return xz.NewReader(buffered, 0)
	case "zlib":
		return zlib.NewReader(buffered)
	}

	return buffered, nil
}

func detectCompression(head []byte) string {
Outer:
	for name, sig := range compressionSigs {
		if len(head) < len(sig) {
			continue
		}
		for i := range sig {
			if head[i] != sig[i] {
				continue Outer
			}
		}
		return name
	}
	return ""
}

// wrappedCloser reads decompressed content but closes the underlying file.
type wrappedCloser struct {
	io.Reader
	underlying io.Closer
}

func (w *wrappedCloser) Close() error {
	return w.underlying.Close()
}
