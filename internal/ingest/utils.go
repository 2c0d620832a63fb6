package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/mining-enricher/constants"
)

// AllowedExt reports whether ext names a decodable document format.
func AllowedExt(ext string) bool {
	return constants.MapExtToFormat(ext) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
