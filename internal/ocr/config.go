package ocr

import (
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// PreprocessConfig controls image preparation before recognition.
// Enhancement factors of 1.0 leave the image untouched.
type PreprocessConfig struct {
	MaxWidth   int
	MaxHeight  int
	Contrast   float64
	Brightness float64
	Sharpness  float64
	Denoise    bool
}

type Config struct {
	DPI              int // rasterization DPI for scanned PDFs
	Workers          int
	UsePreprocessing bool
	Preprocess       PreprocessConfig

	Languages []string // e.g. ["ru", "en"]
	Detail    int      // 0 = text only, >0 = boxes and confidence
	Paragraph bool     // merge lines into paragraphs

	Engine      string // "tesseract" | "gosseract"
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	TessdataDir string

	MinTextLength int // embedded PDF text not longer than this triggers OCR; 0 accepts any text
}

// DefaultConfig mirrors the defaults of common.LoadConfig.
func DefaultConfig() Config {
	return Config{
		DPI:              500,
		Workers:          2,
		UsePreprocessing: true,
		Preprocess: PreprocessConfig{
			MaxWidth:   2000,
			MaxHeight:  2000,
			Contrast:   1.2,
			Brightness: 1.1,
			Sharpness:  1.1,
		},
		Languages:     []string{"ru", "en"},
		Paragraph:     true,
		Engine:        EngineTesseract,
		Tesseract:     "tesseract",
		Pdftoppm:      "pdftoppm",
		MinTextLength: 10,
	}
}

// ConfigFrom converts the application settings into an OCR config.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		DPI:              c.DPI,
		Workers:          c.PoolWorkers,
		UsePreprocessing: c.UsePreprocessing,
		Preprocess: PreprocessConfig{
			MaxWidth:   c.MaxWidth,
			MaxHeight:  c.MaxHeight,
			Contrast:   c.Contrast,
			Brightness: c.Brightness,
			Sharpness:  c.Sharpness,
			Denoise:    c.Denoise,
		},
		Languages:     splitLangs(c.Langs),
		Detail:        c.Detail,
		Paragraph:     c.Paragraph,
		Engine:        c.Engine,
		Tesseract:     c.Tesseract,
		Pdftoppm:      c.Pdftoppm,
		TessdataDir:   c.TessdataDir,
		MinTextLength: c.MinTextLength,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DPI <= 0 {
		c.DPI = d.DPI
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if len(c.Languages) == 0 {
		c.Languages = d.Languages
	}
	if c.Engine == "" {
		c.Engine = d.Engine
	}
	if c.Tesseract == "" {
		c.Tesseract = d.Tesseract
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = d.Pdftoppm
	}
	if c.MinTextLength < 0 {
		c.MinTextLength = d.MinTextLength
	}
	return c
}

func splitLangs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
