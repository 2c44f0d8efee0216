package parse

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/retry"
)

// PDFSource is the PDF extractor used by DocumentParser.
type PDFSource interface {
	ExtractDetailed(ctx context.Context, path string) (ocr.PDFResult, error)
}

// DocumentParser routes a file to the PDF, Excel or image extractor and
// cleans the result.
type DocumentParser struct {
	pdf     PDFSource
	images  ocr.BatchRecognizer
	excel   *ExcelParser
	cleaner *Cleaner
	policy  retry.Policy
	logger  *slog.Logger
}

type Option func(*DocumentParser)

// WithImageRecognizer enables OCR of standalone image files.
func WithImageRecognizer(r ocr.BatchRecognizer) Option {
	return func(d *DocumentParser) { d.images = r }
}

func WithCleaner(c *Cleaner) Option {
	return func(d *DocumentParser) {
		if c != nil {
			d.cleaner = c
		}
	}
}

// WithRetryPolicy overrides the file operation retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(d *DocumentParser) { d.policy = p }
}

func NewDocumentParser(pdf PDFSource, logger *slog.Logger, opts ...Option) *DocumentParser {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DocumentParser{
		pdf:     pdf,
		excel:   NewExcelParser(logger),
		cleaner: NewCleaner(),
		policy:  retry.FileOperation(),
		logger:  logger,
	}
	for _, o := range opts {
		o(d)
	}
	d.policy.Logger = logger
	return d
}

// Parse returns the cleaned text of path.
func (d *DocumentParser) Parse(ctx context.Context, path string) (string, error) {
	res, err := d.Extract(ctx, path)
	return res.Text, err
}

// Extract implements TextExtractor.
func (d *DocumentParser) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	format := constants.FormatOf(path)
	res := TextExtractionResult{Path: path, SourceType: format}

	if _, err := os.Stat(path); err != nil {
		kind := common.KindUnsupported
		switch format {
		case constants.PDF:
			kind = common.KindPDF
		case constants.EXCEL:
			kind = common.KindExcel
		}
		if errors.Is(err, fs.ErrNotExist) {
			return res, common.NewParseError(kind, path, "file not found", err)
		}
		return res, common.NewParseError(kind, path, "stat file", err)
	}

	var (
		text string
		err  error
	)
	switch format {
	case constants.PDF:
		if d.pdf == nil {
			return res, common.NewParseError(common.KindPDF, path, "pdf extraction is not configured", nil)
		}
		var pr ocr.PDFResult
		pr, err = retry.Do(ctx, d.policy, func(ctx context.Context) (ocr.PDFResult, error) {
			return d.pdf.ExtractDetailed(ctx, path)
		})
		text, res.Pages, res.Method = pr.Text, pr.Pages, pr.Method
	case constants.EXCEL:
		text, err = retry.Do(ctx, d.policy, func(context.Context) (string, error) {
			return d.excel.Parse(path)
		})
		res.Pages, res.Method = 1, constants.MethodExcel
	case constants.IMAGE:
		if d.images == nil {
			return res, common.NewParseError(common.KindUnsupported, path, "image OCR is not enabled", nil)
		}
		text, err = ocr.RecognizeFile(ctx, d.images, path)
		res.Pages, res.Method = 1, constants.MethodImage
	default:
		return res, common.NewParseError(common.KindUnsupported, path, "unsupported file type "+filepath.Ext(path), nil)
	}
	res.Duration = time.Since(start)
	if err != nil {
		d.logger.Error("failed to extract document", "path", path, "format", format, "error", err)
		return res, err
	}

	res.Text = d.cleaner.Clean(text)
	d.logger.Info("document extracted",
		"path", path,
		"method", res.Method,
		"chars", len([]rune(res.Text)),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func extOf(path string) string {
	return filepath.Ext(path)
}
