// Package preprocess applies the deterministic enhancement pipeline a card
// photograph goes through before text recognition. Stage order is fixed:
// each stage assumes the previous stage's output.
package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Canonical card canvas. ID-1 cards are 85.60 x 53.98 mm; the 1.586 aspect
// ratio is preserved by the geometric stage so positional heuristics can
// rely on normalized coordinates.
const (
	CanonicalWidth  = 1072
	CanonicalHeight = 676
)

// Options carries the pipeline tunables. These are empirical values, not
// invariants; adjust per capture hardware.
type Options struct {
	ContrastBoost     float64 // percentage passed to the contrast stage
	SharpenSigma      float64
	BinarizeThreshold uint8 // luminance above which a pixel becomes white
	ClosingRadius     int   // structuring radius for morphological closing
	ShadowBlockSize   int   // block size for the shadow-clearing stage
	ShadowDarkRatio   float64
}

// DefaultOptions returns the tuning used by the mobile capture flow.
func DefaultOptions() Options {
	return Options{
		ContrastBoost:     60,
		SharpenSigma:      1.0,
		BinarizeThreshold: 150,
		ClosingRadius:     1,
		ShadowBlockSize:   64,
		ShadowDarkRatio:   0.92,
	}
}

// Enhance runs the full pipeline: geometric normalization, contrast boost,
// edge sharpening, binarization, morphological closing, shadow clearing.
// The result is pure black/white on the canonical canvas. Enhance is
// deterministic given the same input bitmap.
func Enhance(img image.Image, opts Options) *image.Gray {
	normalized := normalizeGeometry(img)
	boosted := imaging.AdjustContrast(normalized, opts.ContrastBoost)
	sharpened := imaging.Sharpen(boosted, opts.SharpenSigma)
	binary := binarize(sharpened, opts.BinarizeThreshold)
	closed := closeDark(binary, opts.ClosingRadius)
	return clearShadows(closed, opts.ShadowBlockSize, opts.ShadowDarkRatio)
}

// normalizeGeometry resamples the capture onto the canonical card canvas.
// Corner detection happens in the capture UI; by the time a frame reaches
// this pipeline it is already cropped to the card, so the correction left
// to do is a resample to the fixed aspect ratio.
func normalizeGeometry(img image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, CanonicalWidth, CanonicalHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

// binarize converts to grayscale and applies a hard threshold.
func binarize(img image.Image, threshold uint8) *image.Gray {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := gray.NRGBAAt(x, y)
			v := uint8(0)
			if c.R > threshold {
				v = 255
			}
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: v})
		}
	}
	return out
}

// closeDark applies morphological closing to the dark foreground: dilation
// (local minimum) followed by erosion (local maximum), filling small gaps
// in character strokes.
func closeDark(img *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return img
	}
	return rankFilter(rankFilter(img, radius, true), radius, false)
}

// rankFilter computes a local minimum (dark dilation) or maximum (dark
// erosion) over a square window.
func rankFilter(img *image.Gray, radius int, min bool) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			best := img.GrayAt(x, y).Y
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < b.Min.X || nx >= b.Max.X || ny < b.Min.Y || ny >= b.Max.Y {
						continue
					}
					v := img.GrayAt(nx, ny).Y
					if (min && v < best) || (!min && v > best) {
						best = v
					}
				}
			}
			out.SetGray(x, y, color.Gray{Y: best})
		}
	}
	return out
}

// clearShadows whitens blocks that are almost entirely dark. Printed text
// never fills a block at that density; only a cast shadow or a finger over
// the lens does.
func clearShadows(img *image.Gray, blockSize int, darkRatio float64) *image.Gray {
	if blockSize <= 0 {
		return img
	}
	b := img.Bounds()
	for by := b.Min.Y; by < b.Max.Y; by += blockSize {
		for bx := b.Min.X; bx < b.Max.X; bx += blockSize {
			x1 := minInt(bx+blockSize, b.Max.X)
			y1 := minInt(by+blockSize, b.Max.Y)
			dark, total := 0, 0
			for y := by; y < y1; y++ {
				for x := bx; x < x1; x++ {
					total++
					if img.GrayAt(x, y).Y == 0 {
						dark++
					}
				}
			}
			if total > 0 && float64(dark)/float64(total) >= darkRatio {
				for y := by; y < y1; y++ {
					for x := bx; x < x1; x++ {
						img.SetGray(x, y, color.Gray{Y: 255})
					}
				}
			}
		}
	}
	return img
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
