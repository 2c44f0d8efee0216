//go:build !gosseract

package ocr

import "errors"

// ErrGosseractDisabled is returned when the binary was built without the
// gosseract tag (libtesseract bindings need cgo).
var ErrGosseractDisabled = errors.New("gosseract engine not compiled in; rebuild with -tags gosseract")

func NewGosseractEngine(string, []string) (Engine, error) {
	return nil, ErrGosseractDisabled
}
