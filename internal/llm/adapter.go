package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/mining-enricher/internal/cache"
	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

// AdapterConfig bounds how hard the adapter tries before giving up.
type AdapterConfig struct {
	Attempts    int           // total tries per excerpt, default 2
	Backoff     time.Duration // fixed pause between tries
	CallTimeout time.Duration // per-try deadline
}

// Outcome is what one extraction produced. Result is empty whenever Err is set.
type Outcome struct {
	Result   entity.ExtractionResult
	Raw      []byte
	Attempts int
	Cached   bool
	Err      error
}

// Adapter wraps a FieldExtractor with pacing, bounded retries, per-call
// timeouts and an optional result cache. It never returns an error to the
// caller: failures become an empty result with Outcome.Err set.
type Adapter struct {
	extractor FieldExtractor
	limiter   *RateLimiter
	cache     cache.ResultCache
	cfg       AdapterConfig
	logger    *slog.Logger
}

func NewAdapter(extractor FieldExtractor, limiter *RateLimiter, rc cache.ResultCache, cfg AdapterConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, 1)
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	return &Adapter{extractor: extractor, limiter: limiter, cache: rc, cfg: cfg, logger: logger}
}

// ModelName identifies the model behind the adapter.
func (a *Adapter) ModelName() string {
	return a.extractor.ModelName()
}

func (a *Adapter) cacheKey(req ExtractRequest) string {
	return cache.Key(a.extractor.ModelName(), PromptVersion, req.ProjectName, req.Company, req.Excerpt)
}

// Extract turns an excerpt into fields.
func (a *Adapter) Extract(ctx context.Context, req ExtractRequest) Outcome {
	log := a.logger.With("model", a.extractor.ModelName(), "excerpt_len", len(req.Excerpt))
	if req.Excerpt == "" {
		return Outcome{Err: common.OracleError("empty excerpt", common.ErrInvalidInput)}
	}

	var key string
	if a.cache != nil {
		key = a.cacheKey(req)
		if raw, ok, err := a.cache.Get(ctx, key); err != nil {
			log.Warn("llm.cache.get_error", "error", err)
		} else if ok {
			if res, err := DecodeFields(raw); err == nil {
				log.Info("llm.cache.hit", "fields", res.KnownFields())
				return Outcome{Result: res, Raw: raw, Cached: true}
			}
			log.Warn("llm.cache.corrupt_entry", "key", key)
		}
	}

	var lastErr error
	attempts := 0
	for attempts < a.cfg.Attempts {
		if attempts > 0 && !sleepCtx(ctx, a.cfg.Backoff) {
			lastErr = ctx.Err()
			break
		}
		if err := a.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		attempts++

		res, raw, err := a.call(ctx, req)
		if err == nil {
			if a.cache != nil {
				if err := a.cache.Set(ctx, key, raw); err != nil {
					log.Warn("llm.cache.set_error", "error", err)
				}
			}
			return Outcome{Result: res, Raw: raw, Attempts: attempts}
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && se.RateLimited() {
			a.limiter.RecordRateLimitError(se.RetryAfter)
		}
		log.Warn("llm.adapter.attempt_failed", "attempt", attempts, "max_attempts", a.cfg.Attempts, "error", err)
		if ctx.Err() != nil {
			break
		}
		if se != nil && !se.Retryable() {
			break
		}
	}

	return Outcome{
		Attempts: attempts,
		Err:      common.OracleError(fmt.Sprintf("extraction failed after %d attempt(s)", attempts), lastErr),
	}
}

func (a *Adapter) call(ctx context.Context, req ExtractRequest) (entity.ExtractionResult, []byte, error) {
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}
	return a.extractor.ExtractFields(ctx, req)
}

// DecodeFields parses schema-conformant JSON into an ExtractionResult.
func DecodeFields(raw []byte) (entity.ExtractionResult, error) {
	var out entity.ExtractionResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return entity.ExtractionResult{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
