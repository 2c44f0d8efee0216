package parse

import (
	"regexp"
	"strings"
	"sync"
)

// Fix is one regexp replacement applied to cleaned text.
type Fix struct {
	Pattern     *regexp.Regexp
	Replacement string
}

var (
	reNaN        = regexp.MustCompile(`(?i)\bnan\b`)
	reTabRun     = regexp.MustCompile(`\t+`)
	rePipe       = regexp.MustCompile(` *\| *`)
	defaultFixes = []Fix{
		{regexp.MustCompile("—"), "-"},
		{regexp.MustCompile("…"), "..."},
		{regexp.MustCompile(` +`), " "},
	}
)

// Cleaner normalizes extracted text before it is sent to the LLM.
// The zero value is not usable; use NewCleaner.
type Cleaner struct {
	mu    sync.RWMutex
	fixes []Fix
}

func NewCleaner() *Cleaner {
	return &Cleaner{fixes: append([]Fix(nil), defaultFixes...)}
}

// AddFix appends a replacement rule to this cleaner only.
func (c *Cleaner) AddFix(pattern, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.fixes = append(c.fixes, Fix{Pattern: re, Replacement: replacement})
	c.mu.Unlock()
	return nil
}

// Clean trims lines, drops empty ones, removes "nan" cells, turns tab
// separated cells into " | " columns and applies the OCR fixes.
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	text = strings.Join(kept, "\n")

	text = reNaN.ReplaceAllString(text, "")
	text = reTabRun.ReplaceAllString(text, "\t")
	text = strings.ReplaceAll(text, "\t", " | ")
	text = rePipe.ReplaceAllString(text, " | ")

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.fixes {
		text = f.Pattern.ReplaceAllString(text, f.Replacement)
	}
	return text
}
