package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/tsawler/tabula"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// PageTextSource reads the embedded text layer of a PDF.
type PageTextSource interface {
	PageCount(path string) (int, error)
	// PageText returns the text of a 1-indexed page.
	PageText(path string, page int) (string, error)
}

// BatchRecognizer is the part of Pool the PDF extractor needs.
type BatchRecognizer interface {
	ProcessImages(ctx context.Context, images []image.Image) ([]string, error)
}

// TabulaPages extracts page text with layout preserved. tabula v1.6.0 links
// gosseract unconditionally, so every build needs cgo with the leptonica and
// tesseract headers installed, whichever OCR_ENGINE is selected.
type TabulaPages struct{}

func (TabulaPages) PageCount(path string) (int, error) {
	ext := tabula.Open(path)
	defer ext.Close()
	return ext.PageCount()
}

func (TabulaPages) PageText(path string, page int) (string, error) {
	// Text is terminal and closes the reader.
	text, _, err := tabula.Open(path).Pages(page).PreserveLayout().Text()
	return text, err
}

// PDFResult is the text of a PDF and how it was obtained.
type PDFResult struct {
	Text     string
	Pages    int
	Method   constants.Method
	Duration time.Duration
}

// PDFExtractor reads the text layer of a PDF and falls back to OCR of the
// rasterized pages when the layer is (almost) empty.
type PDFExtractor struct {
	cfg    Config
	pages  PageTextSource
	ocr    BatchRecognizer
	runner Runner
	logger *slog.Logger
}

type PDFOption func(*PDFExtractor)

func WithPageTextSource(s PageTextSource) PDFOption {
	return func(e *PDFExtractor) {
		if s != nil {
			e.pages = s
		}
	}
}

func WithRunner(r Runner) PDFOption {
	return func(e *PDFExtractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewPDFExtractor(cfg Config, rec BatchRecognizer, logger *slog.Logger, opts ...PDFOption) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &PDFExtractor{
		cfg:    cfg.withDefaults(),
		pages:  TabulaPages{},
		ocr:    rec,
		logger: logger,
	}
	for _, o := range opts {
		o(e)
	}
	if e.runner == nil {
		e.runner = NewExecRunner(logger)
	}
	return e
}

// Extract returns the text of the PDF at path.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	res, err := e.ExtractDetailed(ctx, path)
	return res.Text, err
}

// ExtractDetailed is Extract reporting the method and page count.
func (e *PDFExtractor) ExtractDetailed(ctx context.Context, path string) (PDFResult, error) {
	start := time.Now()
	text, pages := e.textLayer(path)
	if utf8.RuneCountInString(text) > e.cfg.MinTextLength {
		e.logger.Info("pdf text layer extracted", "path", path, "pages", pages, "chars", len(text))
		return PDFResult{Text: text, Pages: pages, Method: constants.MethodPDFText, Duration: time.Since(start)}, nil
	}

	e.logger.Info("pdf has no usable text layer, running ocr", "path", path, "dpi", e.cfg.DPI)
	text, pages, err := e.ocrPages(ctx, path)
	if err != nil {
		return PDFResult{Method: constants.MethodPDFOCR}, err
	}
	return PDFResult{Text: text, Pages: pages, Method: constants.MethodPDFOCR, Duration: time.Since(start)}, nil
}

// textLayer joins the non-empty text of every readable page. Unreadable
// pages are logged and skipped.
func (e *PDFExtractor) textLayer(path string) (string, int) {
	n, err := e.pages.PageCount(path)
	if err != nil {
		e.logger.Warn("cannot read pdf text layer", "path", path, "error", err)
		return "", 0
	}
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		t, err := e.pages.PageText(path, i)
		if err != nil {
			e.logger.Warn("failed to extract page text", "path", path, "page", i, "error", err)
			continue
		}
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), n
}

func (e *PDFExtractor) ocrPages(ctx context.Context, path string) (string, int, error) {
	if e.ocr == nil {
		return "", 0, common.NewParseError(common.KindPDF, path, "ocr is not configured", nil)
	}
	tmpDir, err := os.MkdirTemp("", "ir-pp-*")
	if err != nil {
		return "", 0, common.NewParseError(common.KindPDF, path, "create temp dir", err)
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		msg := "rasterization failed"
		if s := strings.TrimSpace(string(errb)); s != "" {
			msg += ": " + truncate(s, 512)
		}
		return "", 0, common.NewParseError(common.KindPDF, path, msg, err)
	}

	// collect generated pngs (page-1.png, page-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPages(matches)
	if len(matches) == 0 {
		return "", 0, common.NewParseError(common.KindPDF, path, "pdftoppm produced no images", nil)
	}

	images := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		img, err := imaging.Open(m)
		if err != nil {
			return "", 0, common.NewParseError(common.KindPDF, path, fmt.Sprintf("load page image %s", filepath.Base(m)), err)
		}
		images = append(images, img)
	}

	texts, err := e.ocr.ProcessImages(ctx, images)
	if err != nil {
		return "", 0, common.NewParseError(common.KindPDF, path, "ocr batch failed", err)
	}
	return strings.Join(texts, "\n"), len(images), nil
}

// sortPages orders pdftoppm outputs by page number; the zero padding it
// uses depends on the page count.
func sortPages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
