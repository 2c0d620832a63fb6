package constants

import (
	"bytes"
	"mime"
	"strings"
)

// DocumentFormat is the decoded representation chosen for a fetched document.
type DocumentFormat string

const (
	PDF  DocumentFormat = "PDF"
	HTML DocumentFormat = "HTML"
	TEXT DocumentFormat = "TEXT"
)

// DocumentFormats holds the allowed values for the format column in extract_jobs.
var DocumentFormats = []string{string(PDF), string(HTML), string(TEXT)}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a document format, "" when unknown.
func MapExtToFormat(ext string) DocumentFormat {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "html", "htm", "xhtml":
		return HTML
	case "txt", "text", "md":
		return TEXT
	default:
		return ""
	}
}

// MapContentType maps a Content-Type header value to a document format, "" when unknown.
func MapContentType(ct string) DocumentFormat {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(ct))
	}
	switch mt {
	case "application/pdf", "application/x-pdf":
		return PDF
	case "text/html", "application/xhtml+xml":
		return HTML
	case "text/plain":
		return TEXT
	default:
		return ""
	}
}

// SniffFormat looks at the leading bytes of a payload.
func SniffFormat(b []byte) DocumentFormat {
	head := bytes.TrimLeft(b[:min(len(b), 1024)], " \t\r\n\ufeff")
	if bytes.HasPrefix(head, []byte("%PDF-")) {
		return PDF
	}
	lower := bytes.ToLower(head)
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) ||
		bytes.Contains(lower, []byte("<body")) {
		return HTML
	}
	return ""
}
