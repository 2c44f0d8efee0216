package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x*x + y), A: 255})
		}
	}
	return img
}

func TestResizeIfNeeded_WithinBoundsIsIdentity(t *testing.T) {
	img := gradient(40, 30)
	out := ResizeIfNeeded(img, 2000, 2000)
	assert.Same(t, img, out)
	assert.Equal(t, img.Bounds(), out.Bounds())

	exact := ResizeIfNeeded(img, 40, 30)
	assert.Equal(t, img.Pix, exact.Pix)
}

func TestResizeIfNeeded_ScalesByTighterBound(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{"wide", 400, 100, 200, 200, 200, 50},
		{"tall", 100, 400, 200, 200, 50, 200},
		{"both", 300, 600, 200, 200, 100, 200},
		{"tiny result", 1000, 1, 10, 10, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ResizeIfNeeded(gradient(tt.w, tt.h), tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestResizeIfNeeded_NonPositiveBoundDisablesResize(t *testing.T) {
	img := gradient(50, 50)
	assert.Equal(t, 50, ResizeIfNeeded(img, 0, 10).Bounds().Dx())
}

func TestEnhance_UnitMultipliersAreBitIdentical(t *testing.T) {
	img := gradient(16, 16)
	orig := append([]uint8(nil), img.Pix...)

	out := Enhance(img, 1.0, 1.0, 1.0)
	assert.Equal(t, orig, out.Pix)
	assert.Equal(t, orig, img.Pix, "input must not be modified")
}

func TestEnhance_EachStageChangesPixels(t *testing.T) {
	img := gradient(16, 16)
	orig := append([]uint8(nil), img.Pix...)

	assert.NotEqual(t, orig, Enhance(img, 1.5, 1.0, 1.0).Pix, "contrast")
	assert.NotEqual(t, orig, Enhance(img, 1.0, 1.5, 1.0).Pix, "brightness")
	assert.NotEqual(t, orig, Enhance(img, 1.0, 1.0, 2.0).Pix, "sharpness")
	assert.Equal(t, orig, img.Pix)
}

func TestEnhance_BrightnessScalesAndClamps(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 200, B: 0, A: 255})

	out := Enhance(img, 1.0, 1.5, 1.0)
	assert.Equal(t, color.NRGBA{R: 150, G: 255, B: 0, A: 255}, out.NRGBAAt(0, 0))
}

func TestMedianDenoise_RemovesSaltPixel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 10, 10, 255
	}
	img.SetNRGBA(2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out := MedianDenoise(img)
	assert.Equal(t, color.NRGBA{R: 10, G: 10, B: 10, A: 255}, out.NRGBAAt(2, 2))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, img.NRGBAAt(2, 2))
}

func TestPreprocess_AppliesResizeFirst(t *testing.T) {
	out := Preprocess(gradient(300, 100), PreprocessConfig{MaxWidth: 150, MaxHeight: 150, Contrast: 1.2, Brightness: 1.1, Sharpness: 1.1, Denoise: true})
	require.NotNil(t, out)
	assert.Equal(t, image.Rect(0, 0, 150, 50), out.Bounds())
}

func TestPreprocess_DegenerateBounds(t *testing.T) {
	cfg := PreprocessConfig{MaxWidth: 2000, MaxHeight: 2000, Contrast: 1.2, Brightness: 1.1, Sharpness: 1.1, Denoise: true}

	offset := image.NewNRGBA(image.Rect(5, 5, 3005, 6))
	for x := 5; x < 3005; x++ {
		offset.SetNRGBA(x, 5, color.NRGBA{R: uint8(x), G: 40, B: 200, A: 255})
	}

	tests := []struct {
		name  string
		img   image.Image
		empty bool
		want  image.Rectangle
	}{
		{"zero", image.NewNRGBA(image.Rect(0, 0, 0, 0)), true, image.Rectangle{}},
		{"zero height", image.NewNRGBA(image.Rect(0, 0, 3000, 0)), true, image.Rectangle{}},
		{"zero width", image.NewNRGBA(image.Rect(0, 0, 0, 3000)), true, image.Rectangle{}},
		{"offset bounds", offset, false, image.Rect(0, 0, 2000, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out *image.NRGBA
			require.NotPanics(t, func() { out = Preprocess(tt.img, cfg) })
			require.NotNil(t, out)
			if tt.empty {
				assert.True(t, out.Bounds().Empty())
				return
			}
			assert.Equal(t, tt.want, out.Bounds())
		})
	}
}

func TestPreprocess_LeavesInputUntouched(t *testing.T) {
	img := gradient(64, 48)
	before := append([]uint8(nil), img.Pix...)
	Preprocess(img, PreprocessConfig{MaxWidth: 32, MaxHeight: 32, Contrast: 1.5, Brightness: 0.8, Sharpness: 2, Denoise: true})
	assert.Equal(t, before, img.Pix)

	small := gradient(16, 16)
	before = append([]uint8(nil), small.Pix...)
	Preprocess(small, PreprocessConfig{MaxWidth: 2000, MaxHeight: 2000, Contrast: 1.5, Brightness: 0.8, Sharpness: 2, Denoise: true})
	assert.Equal(t, before, small.Pix)
}
