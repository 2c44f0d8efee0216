//go:build gosseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/bmp"
)

// GosseractEngine keeps one libtesseract client for the life of a worker.
type GosseractEngine struct {
	client *gosseract.Client
}

func NewGosseractEngine(tessdataDir string, langs []string) (Engine, error) {
	c := gosseract.NewClient()
	if tessdataDir != "" {
		c.TessdataPrefix = tessdataDir
	}
	if l := TesseractLanguages(langs); len(l) > 0 {
		if err := c.SetLanguage(l...); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	return &GosseractEngine{client: c}, nil
}

func (e *GosseractEngine) Recognize(ctx context.Context, img *image.NRGBA, opts RecognizeOptions) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode bmp: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	level := gosseract.RIL_TEXTLINE
	if opts.Paragraph {
		level = gosseract.RIL_PARA
	}
	boxes, err := e.client.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	frags := make([]Fragment, 0, len(boxes))
	for _, b := range boxes {
		text := strings.Join(strings.Fields(b.Word), " ")
		if text == "" {
			continue
		}
		f := Fragment{Text: text}
		if opts.Detail > 0 {
			f.Box = b.Box
			f.Confidence = b.Confidence / 100.0
		}
		frags = append(frags, f)
	}
	return frags, nil
}

func (e *GosseractEngine) Close() error {
	return e.client.Close()
}
