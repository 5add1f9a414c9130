package carddata

// ConfidenceTier buckets a recognition confidence for display.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// Tier boundaries and the threshold below which a field requires manual
// review before being persisted.
const (
	HighConfidence   = 0.85
	MediumConfidence = 0.75
	ReviewThreshold  = 0.75
)

// ClassifyConfidence maps a [0,1] confidence onto a display tier.
func ClassifyConfidence(c float64) ConfidenceTier {
	switch {
	case c >= HighConfidence:
		return TierHigh
	case c >= MediumConfidence:
		return TierMedium
	}
	return TierLow
}

// NeedsReview reports whether a field at this confidence must be confirmed
// by the user before it is handed to the profile collaborator.
func NeedsReview(c float64) bool { return c < ReviewThreshold }
