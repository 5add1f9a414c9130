// Package ocr defines the text-recognition abstraction for card photos and
// the dual-engine merge that combines two independent recognizers into one
// deduplicated, confidence-ranked line list. The interfaces are small and
// provider-agnostic so engines can be backed by native libraries or models
// without leaking provider concerns into the extractors.
package ocr

import (
	"context"
	"image"
)

// Source identifies which recognizer produced a field.
type Source string

const (
	// SourceMerged marks a field whose reading was confirmed by both
	// engines; the higher-confidence reading was kept.
	SourceMerged Source = "merged"
)

// RawLine is the placeholder field name carried by recognized lines before
// an extractor assigns them a semantic label.
const RawLine = "raw_line"

// Box is a bounding box normalized to [0,1] x [0,1] card-image space with
// the origin at the lower-left corner: content near the top of the card has
// a larger Y.
type Box struct {
	X, Y, W, H float64
}

// IoU computes the intersection-over-union overlap with another box.
func (b Box) IoU(o Box) float64 {
	ix := overlap(b.X, b.X+b.W, o.X, o.X+o.W)
	iy := overlap(b.Y, b.Y+b.H, o.Y, o.Y+o.H)
	inter := ix * iy
	if inter <= 0 {
		return 0
	}
	union := b.W*b.H + o.W*o.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func overlap(a0, a1, b0, b1 float64) float64 {
	lo, hi := a0, a1
	if b0 > lo {
		lo = b0
	}
	if b1 < hi {
		hi = b1
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// Field is one recognized text line with its normalized position and
// confidence. Extractors re-tag Name from RawLine to a semantic label.
type Field struct {
	Name       string
	Value      string
	Confidence float64
	Box        Box
	Source     Source
}

// Engine is the recognizer contract: one preprocessed card image in, raw
// line fields out. Implementations must return fields with normalized
// bounding boxes.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) ([]Field, error)
}

// NormalizeBox converts a pixel-space rectangle (top-left origin, as
// recognizer backends report) into the normalized bottom-origin Box.
func NormalizeBox(r image.Rectangle, bounds image.Rectangle) Box {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	if w <= 0 || h <= 0 {
		return Box{}
	}
	return Box{
		X: float64(r.Min.X-bounds.Min.X) / w,
		Y: 1 - float64(r.Max.Y-bounds.Min.Y)/h,
		W: float64(r.Dx()) / w,
		H: float64(r.Dy()) / h,
	}
}
