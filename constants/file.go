package constants

import (
	"path/filepath"
	"strings"
)

// Format is the coarse document format used to pick an extractor.
type Format string

const (
	PDF     Format = "PDF"
	EXCEL   Format = "EXCEL"
	IMAGE   Format = "IMAGE"
	UNKNOWN Format = "UNKNOWN"
)

// AllowedExtensions holds the extensions the inbox watcher hands to the ingest queue.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a (normalized or dotted) extension to a Format.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "xlsx", "xls", "xlsm":
		return EXCEL
	case "png", "jpg", "jpeg", "bmp", "tif", "tiff", "gif":
		return IMAGE
	default:
		return UNKNOWN
	}
}

// FormatOf returns the Format of a file path.
func FormatOf(path string) Format {
	return MapExtToFormat(filepath.Ext(path))
}
