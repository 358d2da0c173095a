package devproxy

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Content-Encoding values the trace body decoder understands.
const (
	EncodingGzip    = "gzip"
	EncodingZstd    = "zstd"
	EncodingBrotli  = "br"
	EncodingDeflate = "deflate"
)

// DecodeReader wraps r with a decoder for the given Content-Encoding.
// An empty or "identity" encoding returns r unchanged. Unknown encodings
// are an error, so callers never mistake compressed bytes for plaintext.
func DecodeReader(encoding string, r io.Reader) (io.ReadCloser, error) {
	switch encoding {
	case "", "identity":
		return io.NopCloser(r), nil

	case EncodingGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gr, nil

	case EncodingZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil

	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil

	case EncodingDeflate:
		return flate.NewReader(r), nil

	default:
		return nil, fmt.Errorf("unsupported content-encoding %q", encoding)
	}
}

// decodePreview decodes up to maxBytes of the encoded body for logging.
func decodePreview(encoding string, body []byte, maxBytes int64) ([]byte, error) {
	rc, err := DecodeReader(encoding, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	preview, err := io.ReadAll(io.LimitReader(rc, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return preview, nil
}
