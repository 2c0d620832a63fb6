// Package acquire turns a source reference into normalized document text.
package acquire

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

// Acquirer fetches and decodes documents. Safe for concurrent use.
type Acquirer struct {
	fetcher Fetcher
	decoder *Decoder
	timeout time.Duration
	logger  *slog.Logger
	closers []func() error
}

// New wires the default fetchers (disk, HTTP, Cloud Storage) and decoder.
func New(cfg common.AcquireConfig, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	gcs := NewGCSFetcher(cfg.GCSCredentials, cfg.MaxBytes, logger)
	router := NewRouter(
		FileFetcher{MaxBytes: cfg.MaxBytes},
		NewHTTPFetcher(&http.Client{Timeout: cfg.Timeout}, cfg.UserAgent, cfg.MaxBytes, logger),
		gcs,
		logger,
	)
	a := NewWith(router, NewDecoder(cfg, nil, logger), cfg.Timeout, logger)
	a.closers = append(a.closers, gcs.Close)
	return a
}

// NewWith builds an Acquirer from explicit parts; tests pass fakes here.
func NewWith(fetcher Fetcher, decoder *Decoder, timeout time.Duration, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{fetcher: fetcher, decoder: decoder, timeout: timeout, logger: logger}
}

// Acquire fetches ref and returns its decoded text. Failures carry
// ErrAcquisition (unreachable, too large, timed out) or ErrDecode
// (unrecognized format, no text).
func (a *Acquirer) Acquire(ctx context.Context, ref string) (entity.Document, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	log := a.logger.With("source_ref", ref)

	blob, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		log.Warn("acquire.fetch_failed", "error", err)
		return entity.Document{}, err
	}
	format, err := DetectFormat(blob)
	if err != nil {
		log.Warn("acquire.detect_failed", "bytes", len(blob.Bytes), "content_type", blob.ContentType)
		return entity.Document{}, err
	}
	text, pages, err := a.decoder.Decode(ctx, format, blob)
	if err != nil {
		if ctx.Err() != nil {
			err = common.AcquisitionError("acquire timed out", ctx.Err())
		}
		log.Warn("acquire.decode_failed", "format", format, "error", err)
		return entity.Document{}, err
	}

	doc := entity.Document{
		SourceRef:   ref,
		ContentType: blob.ContentType,
		Format:      format,
		Text:        text,
		PageCount:   pages,
	}
	log.Info("acquire.ok",
		"format", format,
		"bytes", len(blob.Bytes),
		"chars", doc.Length(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// Close releases any clients opened by the fetchers.
func (a *Acquirer) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
