package preprocess

import "image"

// IssueCode identifies one capture problem.
type IssueCode string

const (
	IssueTooSmall       IssueCode = "too_small"
	IssueBadAspectRatio IssueCode = "bad_aspect_ratio"
	IssueUnderexposed   IssueCode = "underexposed"
)

// Issue pairs a code with a human-readable hint for the retake prompt.
type Issue struct {
	Code    IssueCode
	Message string
}

// Plausible card aspect ratios (width/height) and minimum capture size.
const (
	MinAspectRatio = 1.3
	MaxAspectRatio = 2.0
	MinWidth       = 600
	MinHeight      = 300
	minMeanLuma    = 60.0
)

// AssessQuality checks a capture before OCR. The result is advisory:
// recognition proceeds regardless, and issues are surfaced to the caller
// for retry guidance only.
func AssessQuality(img image.Image) (bool, []Issue) {
	var issues []Issue
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w < MinWidth || h < MinHeight {
		issues = append(issues, Issue{
			Code:    IssueTooSmall,
			Message: "capture resolution is too low, move the camera closer",
		})
	}
	if h > 0 {
		aspect := float64(w) / float64(h)
		if aspect < MinAspectRatio || aspect > MaxAspectRatio {
			issues = append(issues, Issue{
				Code:    IssueBadAspectRatio,
				Message: "frame does not look like a card, align the card with the guide",
			})
		}
	}
	if meanLuminance(img) < minMeanLuma {
		issues = append(issues, Issue{
			Code:    IssueUnderexposed,
			Message: "image is too dark, find better lighting",
		})
	}
	return len(issues) == 0, issues
}

// meanLuminance samples the image on a coarse grid; a full per-pixel pass
// is not worth the cost for an advisory check.
func meanLuminance(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	step := b.Dx() / 64
	if step < 1 {
		step = 1
	}
	var sum, n float64
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 257.0
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
