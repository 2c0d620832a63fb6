package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/joseph-ayodele/mining-enricher/constants"
	"github.com/joseph-ayodele/mining-enricher/internal/common"
)

// Decoder turns fetched bytes into plain text.
type Decoder struct {
	cfg    common.AcquireConfig
	runner Runner
	logger *slog.Logger
}

func NewDecoder(cfg common.AcquireConfig, runner Runner, logger *slog.Logger) *Decoder {
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Decoder{cfg: cfg, runner: runner, logger: logger}
}

// DetectFormat picks a format from magic bytes, then the reported content
// type, then the name's extension, then an HTML sniff, and finally plain text
// when the payload is valid UTF-8.
func DetectFormat(b Blob) (constants.DocumentFormat, error) {
	if constants.SniffFormat(b.Bytes) == constants.PDF {
		return constants.PDF, nil
	}
	if f := constants.MapContentType(b.ContentType); f != "" {
		return f, nil
	}
	if f := constants.MapExtToFormat(filepath.Ext(b.Name)); f != "" {
		return f, nil
	}
	if f := constants.SniffFormat(b.Bytes); f != "" {
		return f, nil
	}
	if utf8.Valid(b.Bytes) {
		return constants.TEXT, nil
	}
	return "", common.DecodeError("unrecognized document format", nil)
}

// Decode returns normalized text and, for PDFs, the page count.
func (d *Decoder) Decode(ctx context.Context, format constants.DocumentFormat, b Blob) (string, *int, error) {
	var (
		text  string
		pages *int
		err   error
	)
	switch format {
	case constants.PDF:
		var n int
		text, n, err = d.decodePDF(ctx, b.Bytes)
		pages = &n
	case constants.HTML:
		text, err = decodeHTML(b.Bytes, b.ContentType)
	case constants.TEXT:
		text, err = decodeText(b.Bytes, b.ContentType)
	default:
		return "", nil, common.DecodeError("unsupported format", fmt.Errorf("%q", format))
	}
	if err != nil {
		return "", nil, err
	}
	text = Normalize(text)
	if text == "" {
		return "", pages, common.DecodeError("document has no text", nil)
	}
	return text, pages, nil
}

func (d *Decoder) decodePDF(ctx context.Context, data []byte) (string, int, error) {
	tmp, err := os.CreateTemp(d.cfg.TempDir, "enricher-*.pdf")
	if err != nil {
		return "", 0, common.DecodeError("create temp file", err)
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			d.logger.Warn("acquire.pdf.temp_remove_error", "path", path, "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", 0, common.DecodeError("write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, common.DecodeError("close temp file", err)
	}

	// pdftotext -enc UTF-8 -eol unix <path> -
	out, errb, err := d.runner.Run(ctx, d.cfg.Pdftotext, d.logger, "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, common.DecodeError("pdftotext: "+truncate(strings.TrimSpace(string(errb)), 512), err)
	}
	text := string(out)
	// form feed separates pages
	pages := 1 + strings.Count(strings.TrimRight(text, "\f"), "\f")

	if strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) == "" && d.cfg.OCR.Enabled {
		d.logger.Info("acquire.pdf.ocr_fallback", "pages", pages)
		ocrText, ocrPages, err := d.pdfToOCR(ctx, path)
		if err != nil {
			return "", pages, common.DecodeError("ocr fallback", err)
		}
		return ocrText, ocrPages, nil
	}
	return text, pages, nil
}

// pdfToOCR rasterizes pages with pdftoppm and reads each with tesseract.
func (d *Decoder) pdfToOCR(ctx context.Context, path string) (string, int, error) {
	tmpDir, err := os.MkdirTemp(d.cfg.TempDir, "enricher-pp-*")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			d.logger.Warn("acquire.ocr.temp_remove_error", "path", tmpDir, "error", err)
		}
	}()

	ocr := d.cfg.OCR
	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(max(ocr.DPI, 72)), "-png"}
	if ocr.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(ocr.MaxPages))
	}
	args = append(args, path, prefix)
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	if _, errb, err := d.runner.Run(ctx, ocr.Pdftoppm, d.logger, args...); err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %s: %w", truncate(strings.TrimSpace(string(errb)), 512), err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	if ocr.MaxPages > 0 && len(matches) > ocr.MaxPages {
		matches = matches[:ocr.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	failed := 0
	for _, img := range matches {
		txt, err := d.tesseract(ctx, img)
		if err != nil {
			failed++
			d.logger.Warn("acquire.ocr.page_failed", "image", filepath.Base(img), "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	if failed == len(matches) {
		return "", 0, fmt.Errorf("tesseract failed on all %d pages", failed)
	}
	return b.String(), len(matches), nil
}

func (d *Decoder) tesseract(ctx context.Context, img string) (string, error) {
	ocr := d.cfg.OCR
	lang := ocr.Lang
	if lang == "" {
		lang = "eng"
	}
	args := []string{img, "stdout", "-l", lang}
	if ocr.TessdataDir != "" {
		args = append(args, "--tessdata-dir", ocr.TessdataDir)
	}
	// tesseract <file> stdout -l <lang>
	out, errb, err := d.runner.Run(ctx, ocr.Tesseract, d.logger, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %s: %w", truncate(strings.TrimSpace(string(errb)), 512), err)
	}
	return string(out), nil
}

var rePageNum = regexp.MustCompile(`-(\d+)\.png$`)

func pageNumber(name string) int {
	m := rePageNum.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

var blockTags = regexp.MustCompile(`(?i)<(/?)(p|div|br|li|tr|td|th|h[1-6]|table|section|article|header|footer|ul|ol|pre|blockquote)\b([^>]*)>`)

// addBreaksBeforeParsing puts line breaks around block elements so their
// text does not run together once tags are stripped.
func addBreaksBeforeParsing(html string) string {
	return blockTags.ReplaceAllString(html, "\n<$1$2$3>\n")
}

// decodeHTML strips markup and returns the visible text.
func decodeHTML(data []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		r = bytes.NewReader(data)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", common.DecodeError("transcode html", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(addBreaksBeforeParsing(string(raw))))
	if err != nil {
		return "", common.DecodeError("parse html", err)
	}
	doc.Find("script, style, noscript, template, head").Remove()
	return doc.Text(), nil
}

// decodeText passes UTF-8 through and transcodes anything else using the
// declared (or guessed) charset.
func decodeText(data []byte, contentType string) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", common.DecodeError("unknown text encoding", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", common.DecodeError("transcode text", err)
	}
	return string(out), nil
}
