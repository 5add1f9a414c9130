package ocr

import (
	"context"
	"image"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sudachi-dev/cardscan/observability"
	"github.com/sudachi-dev/cardscan/scanerr"
)

// MergeIoUThreshold is the overlap above which two fields from different
// engines are considered the same physical text line, provided their text
// also matches.
const MergeIoUThreshold = 0.5

// DualEngine runs two independent recognizers concurrently over the same
// preprocessed image and merges their line output. A single recognizer is
// unreliable on mixed Latin/Japanese card layouts; agreement between two is
// the main accuracy lever of the photo path.
type DualEngine struct {
	A, B Engine
	Log  observability.Logger
}

func NewDualEngine(a, b Engine, log observability.Logger) *DualEngine {
	return &DualEngine{A: a, B: b, Log: observability.OrNop(log)}
}

// Scan recognizes the image with both engines. If exactly one engine fails
// the other's output is used alone; Scan fails only when both do, or when
// neither produced any text.
func (d *DualEngine) Scan(ctx context.Context, img image.Image) ([]Field, error) {
	start := time.Now()
	var fieldsA, fieldsB []Field
	var errA, errB error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fieldsA, errA = d.A.Recognize(gctx, img)
		return nil
	})
	g.Go(func() error {
		fieldsB, errB = d.B.Recognize(gctx, img)
		return nil
	})
	g.Wait()

	if errA != nil && errB != nil {
		return nil, scanerr.Wrap(scanerr.KindOCRProcessingFailed, "ocr", errB)
	}
	if errA != nil {
		d.Log.Warn("ocr engine failed, using single-engine output",
			observability.String("engine", d.A.Name()),
			observability.Error("error", errA))
	}
	if errB != nil {
		d.Log.Warn("ocr engine failed, using single-engine output",
			observability.String("engine", d.B.Name()),
			observability.Error("error", errB))
	}

	merged := Merge(fieldsA, fieldsB)
	if len(merged) == 0 {
		return nil, scanerr.New(scanerr.KindOCRNoTextDetected, "ocr")
	}
	d.Log.Debug("dual ocr complete",
		observability.Int(observability.MetricOCRLineCount, len(merged)),
		observability.Int(observability.MetricMergeCollapsed, len(fieldsA)+len(fieldsB)-len(merged)),
		observability.Duration(observability.MetricOCRDuration, time.Since(start)))
	return merged, nil
}

// Merge combines line fields from two engines. Fields whose boxes overlap
// with IoU above MergeIoUThreshold and whose text is a case-insensitive
// substring match in either direction collapse to the higher-confidence
// reading tagged SourceMerged; everything else is kept as-is. The result is
// sorted top-to-bottom (descending normalized Y).
func Merge(a, b []Field) []Field {
	used := make([]bool, len(b))
	out := make([]Field, 0, len(a)+len(b))

	for _, fa := range a {
		matched := -1
		bestIoU := MergeIoUThreshold
		for j, fb := range b {
			if used[j] {
				continue
			}
			if !sameText(fa.Value, fb.Value) {
				continue
			}
			if iou := fa.Box.IoU(fb.Box); iou > bestIoU {
				bestIoU = iou
				matched = j
			}
		}
		if matched >= 0 {
			used[matched] = true
			keep := fa
			if b[matched].Confidence > fa.Confidence {
				keep = b[matched]
			}
			keep.Source = SourceMerged
			out = append(out, keep)
			continue
		}
		out = append(out, fa)
	}
	for j, fb := range b {
		if !used[j] {
			out = append(out, fb)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Box.Y > out[j].Box.Y
	})
	return out
}

func sameText(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
