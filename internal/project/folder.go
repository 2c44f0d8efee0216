// Package project derives project metadata from the working directory and
// merges it into extracted invoices.
package project

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
)

// NotFound fills every field when no project folder is found.
const NotFound = "не найдено"

// Info describes a project folder named "(<number>)<customer>(<address>)(<product>)",
// for example "(37)Петухова(Окулова, 28-35)(Кухня)".
type Info struct {
	Number   string `json:"номер_договора"`
	Customer string `json:"заказчик"`
	Address  string `json:"адрес"`
	Product  string `json:"изделие"`
	Dir      string `json:"project_dir"`
}

// Found reports whether the folder pattern matched.
func (i Info) Found() bool { return i.Number != NotFound }

var reProjectFolder = regexp.MustCompile(`^\(([^)]+)\)([^()]+)\(([^)]+)\)\(([^)]+)\)$`)

// ParseFolder looks for a project folder at dir and then at each of its
// parents. The first match wins.
func ParseFolder(dir string, logger *slog.Logger) Info {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = filepath.Clean(dir)
	}

	for p := abs; ; {
		if m := reProjectFolder.FindStringSubmatch(filepath.Base(p)); m != nil {
			logger.Debug("project folder found", "dir", p)
			return Info{
				Number:   strings.TrimSpace(m[1]),
				Customer: strings.TrimSpace(m[2]),
				Address:  strings.TrimSpace(m[3]),
				Product:  strings.TrimSpace(m[4]),
				Dir:      p,
			}
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}

	logger.Warn("project folder not found", "path", dir)
	return Info{Number: NotFound, Customer: NotFound, Address: NotFound, Product: NotFound, Dir: abs}
}
