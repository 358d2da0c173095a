package devproxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

// DecisionLogger writes a structured log entry for every request the
// intercepting transport sees: redirected (forced or auto) and passthrough
// alike. It uses slog.LogAttrs for low-allocation logging on the hot path.
type DecisionLogger struct {
	// DumpBodies additionally logs redirected response bodies at debug
	// level, decoded from their Content-Encoding so traces show plaintext.
	DumpBodies bool

	// MaxBodyBytes caps how much of a response body is logged when
	// DumpBodies is on. Zero means the default (4 KiB).
	MaxBodyBytes int64

	logger *slog.Logger
}

// DecisionEntry contains all fields for a single decision record.
type DecisionEntry struct {
	// Timestamp when the request entered the transport.
	Timestamp time.Time

	// Method is the HTTP method.
	Method string

	// Host is the original destination hostname.
	Host string

	// Path is the request URL path.
	Path string

	// Scheme is the original request scheme ("http" or "https").
	Scheme string

	// Mode is ModeForced, ModeAuto, or ModePassthrough.
	Mode string

	// ProxyHost is the host the request was redirected to. Empty for
	// passthrough.
	ProxyHost string

	// Status is the response status code. Zero on transport error or
	// passthrough.
	Status int

	// Duration is the time spent in the redirected round trip. Zero for
	// passthrough (the base transport is not measured).
	Duration time.Duration

	// Error describes a transport failure, if any.
	Error string
}

// NewDecisionLogger creates a DecisionLogger writing to the given
// slog.Logger. For machine-readable traces, pass a logger configured with
// slog.NewJSONHandler.
func NewDecisionLogger(logger *slog.Logger) *DecisionLogger {
	return &DecisionLogger{logger: logger}
}

// Log writes one decision record.
func (dl *DecisionLogger) Log(e DecisionEntry) {
	attrs := make([]slog.Attr, 0, 10)

	attrs = append(attrs,
		slog.Time("timestamp", e.Timestamp),
		slog.String("method", e.Method),
		slog.String("host", e.Host),
		slog.String("path", e.Path),
		slog.String("scheme", e.Scheme),
		slog.String("mode", e.Mode),
	)

	if e.Mode != ModePassthrough {
		attrs = append(attrs,
			slog.String("proxy_host", e.ProxyHost),
			slog.Duration("duration", e.Duration),
		)
		if e.Error == "" {
			attrs = append(attrs, slog.Int("status", e.Status))
		}
	}

	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}

	dl.logger.LogAttrs(context.Background(), slog.LevelInfo, "request", attrs...)
}

// DumpBody logs a preview of the response body at debug level, decoded per
// its Content-Encoding. The body is re-buffered so the caller can still
// read it. No-op unless DumpBodies is set.
func (dl *DecisionLogger) DumpBody(req *http.Request, resp *http.Response) {
	if !dl.DumpBodies || resp == nil || resp.Body == nil {
		return
	}
	if !dl.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	maxBytes := dl.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 10
	}

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		dl.logger.Debug("trace body read failed", "error", err)
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	preview, decErr := decodePreview(resp.Header.Get("Content-Encoding"), raw, maxBytes)

	attrs := []slog.Attr{
		slog.String("host", req.URL.Hostname()),
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Int("body_bytes", len(raw)),
	}
	if decErr != nil {
		attrs = append(attrs, slog.String("decode_error", decErr.Error()))
	} else if utf8.Valid(preview) {
		attrs = append(attrs, slog.String("body", string(preview)))
	} else {
		attrs = append(attrs, slog.String("body", "<binary>"))
	}

	dl.logger.LogAttrs(context.Background(), slog.LevelDebug, "response body", attrs...)
}
