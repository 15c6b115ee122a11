package stream

import (
	"fmt"
	"io"
	"os"

	"fknsrs.biz/p/vidvault/internal/rangespec"
)

// ChunkSize is the largest single write made while streaming a range.
const ChunkSize = 1024 * 1024

// FileRange reads a byte interval out of a file. It reads at most
// Length() bytes; if the file is shorter than the interval, reads end early
// at the truncation point rather than padding.
type FileRange struct {
	f         *os.File
	remaining int64
}

// Open seeks the file to the start of the range. The caller owns the handle
// and must Close it on every exit path.
func Open(path string, rng rangespec.Range) (*FileRange, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stream.Open: %w", err)
	}

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("stream.Open: could not seek to %d: %w", rng.Start, err)
	}

	return &FileRange{f: f, remaining: rng.Length()}, nil
}

func (fr *FileRange) Read(p []byte) (int, error) {
	if fr.remaining <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > fr.remaining {
		p = p[:fr.remaining]
	}

	n, err := fr.f.Read(p)
	fr.remaining -= int64(n)

	return n, err
}

func (fr *FileRange) Close() error {
	return fr.f.Close()
}

// WriteTo sends the range to w in chunks of at most ChunkSize bytes, in
// order. A zero-byte read before the interval is exhausted stops the stream;
// truncated source data is not an error here.
func (fr *FileRange) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, ChunkSize)

	var written int64

	for fr.remaining > 0 {
		n, err := fr.Read(buf)

		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, fmt.Errorf("stream.FileRange.WriteTo: %w", werr)
			}
		}

		if err == io.EOF || (err == nil && n == 0) {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("stream.FileRange.WriteTo: %w", err)
		}
	}

	return written, nil
}
