package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/mining-enricher/internal/common"
)

// Blob is the raw payload behind a source reference.
type Blob struct {
	Bytes       []byte
	ContentType string // as reported by the source, may be empty
	Name        string // file or object name, used as an extension hint
}

// Fetcher reads the bytes behind a source reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (Blob, error)
}

// Router dispatches a reference to the fetcher for its scheme:
// bare paths and file:// go to disk, http(s):// to HTTP, gs:// to Cloud Storage.
type Router struct {
	File   Fetcher
	HTTP   Fetcher
	GCS    Fetcher
	logger *slog.Logger
}

func NewRouter(file, httpF, gcs Fetcher, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{File: file, HTTP: httpF, GCS: gcs, logger: logger}
}

func (r *Router) Fetch(ctx context.Context, ref string) (Blob, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Blob{}, common.AcquisitionError("empty source reference", common.ErrInvalidInput)
	}
	var f Fetcher
	switch scheme(ref) {
	case "", "file":
		f = r.File
	case "http", "https":
		f = r.HTTP
	case "gs":
		f = r.GCS
	default:
		return Blob{}, common.AcquisitionError("unsupported source scheme", fmt.Errorf("%q", scheme(ref)))
	}
	if f == nil {
		return Blob{}, common.AcquisitionError("no fetcher configured for "+scheme(ref), common.ErrInvalidInput)
	}
	return f.Fetch(ctx, ref)
}

func scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}

// readLimited reads at most max bytes; a larger payload is an error.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("payload exceeds %d bytes", max)
	}
	return b, nil
}

// FileFetcher reads local files.
type FileFetcher struct {
	MaxBytes int64
}

func (f FileFetcher) Fetch(_ context.Context, ref string) (Blob, error) {
	p := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return Blob{}, common.AcquisitionError("parse file url", err)
		}
		p = u.Path
	}
	fh, err := os.Open(p)
	if err != nil {
		return Blob{}, common.AcquisitionError("open file", err)
	}
	defer fh.Close()
	b, err := readLimited(fh, f.MaxBytes)
	if err != nil {
		return Blob{}, common.AcquisitionError("read file", err)
	}
	return Blob{Bytes: b, Name: filepath.Base(p)}, nil
}

// HTTPFetcher downloads http(s) references.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *slog.Logger
}

func NewHTTPFetcher(client *http.Client, userAgent string, maxBytes int64, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{client: client, userAgent: userAgent, maxBytes: maxBytes, logger: logger}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, ref string) (Blob, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return Blob{}, common.AcquisitionError("build request", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	req.Header.Set("Accept", "application/pdf, text/html;q=0.9, text/plain;q=0.8, */*;q=0.5")

	resp, err := h.client.Do(req)
	if err != nil {
		return Blob{}, common.AcquisitionError("http get", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			h.logger.Warn("acquire.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Blob{}, common.AcquisitionError("http get", fmt.Errorf("non-2xx status: %d", resp.StatusCode))
	}
	b, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Blob{}, common.AcquisitionError("http read timed out", err)
		}
		return Blob{}, common.AcquisitionError("http read", err)
	}
	h.logger.Debug("acquire.http.ok",
		"url", ref,
		"status", resp.StatusCode,
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Blob{
		Bytes:       b,
		ContentType: resp.Header.Get("Content-Type"),
		Name:        path.Base(resp.Request.URL.Path),
	}, nil
}
