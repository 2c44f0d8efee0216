package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// RecognizeFile runs a single image file through the pool.
func RecognizeFile(ctx context.Context, rec BatchRecognizer, path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", common.NewParseError(common.KindRecognition, path, "open image", err)
	}
	texts, err := rec.ProcessImages(ctx, []image.Image{img})
	if err != nil {
		return "", common.NewParseError(common.KindRecognition, path, "ocr failed", err)
	}
	return strings.Join(texts, "\n"), nil
}
