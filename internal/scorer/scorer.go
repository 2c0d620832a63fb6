package scorer

import (
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

const separator = "\n\n"

// Config sizes are in characters (runes).
type Config struct {
	WindowSize   int // default 5000
	Threshold    int // minimum distinct categories for a window to qualify, default 2
	Budget       int // maximum output length, default 30000
	MinLength    int // below this the selection falls back, default 1000, negative disables
	FallbackSize int // leading characters used on fallback, capped at Budget
}

// Selection is the excerpt chosen for one document.
type Selection struct {
	Text       string
	Chunks     []entity.Chunk // selected windows, in output order
	Windows    int            // total windows scanned
	Candidates int            // windows at or above the threshold
	Fallback   bool
}

// Scorer picks the highest-signal windows of a document under a size budget.
// It does no I/O and is safe for concurrent use.
type Scorer struct {
	cfg    Config
	table  Table
	logger *slog.Logger
}

func New(cfg Config, table Table, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 5000
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 2
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 30000
	}
	if cfg.MinLength < 0 {
		cfg.MinLength = 0
	} else if cfg.MinLength == 0 {
		cfg.MinLength = 1000
	}
	if cfg.FallbackSize <= 0 || cfg.FallbackSize > cfg.Budget {
		cfg.FallbackSize = cfg.Budget
	}
	if len(table) == 0 {
		table = DefaultCategories()
	}
	return &Scorer{cfg: cfg, table: table, logger: logger}
}

// Config returns the effective configuration after defaults.
func (s *Scorer) Config() Config { return s.cfg }

// Windows splits text into contiguous windows of size characters; the last
// one may be shorter.
func Windows(text string, size int) []entity.Chunk {
	if text == "" || size <= 0 {
		return nil
	}
	r := []rune(text)
	out := make([]entity.Chunk, 0, len(r)/size+1)
	for off := 0; off < len(r); off += size {
		end := min(off+size, len(r))
		out = append(out, entity.Chunk{Text: string(r[off:end]), Offset: off})
	}
	return out
}

// Score counts the distinct categories matching window.
func Score(window string, table Table) int {
	n := 0
	for _, c := range table {
		if c.Pattern.MatchString(window) {
			n++
		}
	}
	return n
}

// Select returns the excerpt to send downstream for text.
func (s *Scorer) Select(text string) Selection {
	windows := Windows(text, s.cfg.WindowSize)
	var candidates []entity.Chunk
	for _, w := range windows {
		w.Score = Score(w.Text, s.table)
		if w.Score >= s.cfg.Threshold {
			candidates = append(candidates, w)
		}
	}
	// ties keep document order
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	var (
		b      strings.Builder
		total  int
		chosen []entity.Chunk
	)
	for _, c := range candidates {
		add := runeLen(c.Text)
		if len(chosen) > 0 {
			add += len(separator)
		}
		if total+add > s.cfg.Budget {
			continue
		}
		if len(chosen) > 0 {
			b.WriteString(separator)
		}
		b.WriteString(c.Text)
		total += add
		chosen = append(chosen, c)
	}

	sel := Selection{
		Text:       b.String(),
		Chunks:     chosen,
		Windows:    len(windows),
		Candidates: len(candidates),
	}
	if total < s.cfg.MinLength {
		sel.Text = prefix(text, s.cfg.FallbackSize)
		sel.Chunks = nil
		sel.Fallback = true
	}

	s.logger.Debug("scorer.select",
		"windows", sel.Windows,
		"candidates", sel.Candidates,
		"selected", len(sel.Chunks),
		"chars", runeLen(sel.Text),
		"fallback", sel.Fallback,
	)
	return sel
}

func prefix(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
