package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// AllowedExt checks if a file extension is in the inbox set (pdf, xlsx).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
// Office lock files (~$name.xlsx) count as hidden.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}
