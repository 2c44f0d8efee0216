package ocr

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// smoothKernel is the degenerate image used for sharpness blending.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// Preprocess applies resize, enhancement and optional denoising in that order.
func Preprocess(img image.Image, cfg PreprocessConfig) *image.NRGBA {
	out := ResizeIfNeeded(img, cfg.MaxWidth, cfg.MaxHeight)
	out = Enhance(out, cfg.Contrast, cfg.Brightness, cfg.Sharpness)
	if cfg.Denoise {
		out = MedianDenoise(out)
	}
	return out
}

// ResizeIfNeeded downscales img to fit within maxW x maxH keeping the aspect
// ratio. Images already within bounds are returned unchanged, as are all
// images when a bound is not positive.
func ResizeIfNeeded(img image.Image, maxW, maxH int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return toNRGBA(img)
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

// Enhance adjusts contrast, brightness and sharpness. A factor of 1.0 or a
// non-positive factor skips that step.
func Enhance(img *image.NRGBA, contrast, brightness, sharpness float64) *image.NRGBA {
	img = toNRGBA(img)
	if active(contrast) {
		img = adjustContrast(img, contrast)
	}
	if active(brightness) {
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp8(float64(c.R) * brightness),
				G: clamp8(float64(c.G) * brightness),
				B: clamp8(float64(c.B) * brightness),
				A: c.A,
			}
		})
	}
	if active(sharpness) {
		img = adjustSharpness(img, sharpness)
	}
	return img
}

func active(f float64) bool {
	return f > 0 && f != 1.0
}

// adjustContrast blends the image against a flat gray of its mean luminance.
func adjustContrast(img *image.NRGBA, factor float64) *image.NRGBA {
	mean := meanLuminance(img)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp8(mean + factor*(float64(c.R)-mean)),
			G: clamp8(mean + factor*(float64(c.G)-mean)),
			B: clamp8(mean + factor*(float64(c.B)-mean)),
			A: c.A,
		}
	})
}

func adjustSharpness(img *image.NRGBA, factor float64) *image.NRGBA {
	deg := imaging.Convolve3x3(img, smoothKernel, &imaging.ConvolveOptions{Normalize: true})
	out := image.NewNRGBA(img.Rect)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		for k := 0; k < 3; k++ {
			d := float64(deg.Pix[i+k])
			out.Pix[i+k] = clamp8(d + factor*(float64(img.Pix[i+k])-d))
		}
		out.Pix[i+3] = img.Pix[i+3]
	}
	return out
}

// MedianDenoise replaces every channel value with the median of its 3x3
// neighbourhood. Edge pixels use the clamped neighbourhood.
func MedianDenoise(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	window := make([]uint8, 0, 9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst := out.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				window = window[:0]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						sx := min(max(x+dx, 0), w-1)
						sy := min(max(y+dy, 0), h-1)
						window = append(window, img.Pix[img.PixOffset(b.Min.X+sx, b.Min.Y+sy)+ch])
					}
				}
				sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
				out.Pix[dst+ch] = window[len(window)/2]
			}
			out.Pix[dst+3] = img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
		}
	}
	return out
}

func meanLuminance(img *image.NRGBA) float64 {
	n := len(img.Pix) / 4
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+3 < len(img.Pix); i += 4 {
		sum += 0.299*float64(img.Pix[i]) + 0.587*float64(img.Pix[i+1]) + 0.114*float64(img.Pix[i+2])
	}
	return math.Round(sum / float64(n))
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}
	return imaging.Clone(img)
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
