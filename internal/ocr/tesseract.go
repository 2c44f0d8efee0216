package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/bmp"
)

// TesseractEngine shells out to the tesseract CLI and parses its TSV output.
type TesseractEngine struct {
	bin         string
	tessdataDir string
	lang        string
	runner      Runner
}

func NewTesseractEngine(bin, tessdataDir string, langs []string, r Runner) *TesseractEngine {
	if bin == "" {
		bin = "tesseract"
	}
	if r == nil {
		r = NewExecRunner(nil)
	}
	return &TesseractEngine{
		bin:         bin,
		tessdataDir: tessdataDir,
		lang:        strings.Join(TesseractLanguages(langs), "+"),
		runner:      r,
	}
}

func (e *TesseractEngine) Recognize(ctx context.Context, img *image.NRGBA, opts RecognizeOptions) ([]Fragment, error) {
	f, err := os.CreateTemp("", "ocr-page-*.bmp")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := bmp.Encode(f, img); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("encode bmp: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang> [--tessdata-dir <dir>] tsv
	args := []string{path, "stdout"}
	if e.lang != "" {
		args = append(args, "-l", e.lang)
	}
	if e.tessdataDir != "" {
		args = append(args, "--tessdata-dir", e.tessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.bin, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return ParseTSV(string(out), opts), nil
}

func (e *TesseractEngine) Close() error { return nil }

type tsvKey struct {
	page, block, par, line int
}

type tsvGroup struct {
	words []string
	box   image.Rectangle
	conf  float64
	n     int
}

// ParseTSV groups tesseract word rows (level 5) into lines, or into
// paragraphs when opts.Paragraph is set. Groups keep first-seen order.
// Rows with confidence -1 or empty text are ignored.
func ParseTSV(tsv string, opts RecognizeOptions) []Fragment {
	var order []tsvKey
	groups := map[tsvKey]*tsvGroup{}

	for _, ln := range strings.Split(tsv, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if ln == "" || strings.HasPrefix(ln, "level") {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], " "))
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[10]), 64)
		if err != nil || conf < 0 || text == "" {
			continue
		}
		n := atoiAll(cols[1:10])
		k := tsvKey{page: n[0], block: n[1], par: n[2], line: n[3]}
		if opts.Paragraph {
			k.line = 0
		}
		g, ok := groups[k]
		if !ok {
			g = &tsvGroup{}
			groups[k] = g
			order = append(order, k)
		}
		r := image.Rect(n[5], n[6], n[5]+n[7], n[6]+n[8])
		if g.n == 0 {
			g.box = r
		} else {
			g.box = g.box.Union(r)
		}
		g.words = append(g.words, text)
		g.conf += conf
		g.n++
	}

	frags := make([]Fragment, 0, len(order))
	for _, k := range order {
		g := groups[k]
		f := Fragment{Text: strings.Join(g.words, " ")}
		if opts.Detail > 0 {
			f.Box = g.box
			f.Confidence = g.conf / float64(g.n) / 100
		}
		frags = append(frags, f)
	}
	return frags
}

// atoiAll parses page, block, par, line, word, left, top, width, height.
func atoiAll(cols []string) [9]int {
	var out [9]int
	for i := 0; i < len(cols) && i < len(out); i++ {
		out[i], _ = strconv.Atoi(strings.TrimSpace(cols[i]))
	}
	return out
}
