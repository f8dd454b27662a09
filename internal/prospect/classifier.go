// Package prospect maps a site's detection result onto a sales-prospect
// tier. The tooling exists to find tour operators that could buy a chat
// product: no chatbot plus booking capability is the sweet spot, and an OTA
// dependency means they're paying commission that could fund one.
package prospect

import "github.com/sells-group/tourscan/internal/detect"

// Tier is the business classification of one analyzed site.
type Tier string

const (
	TierHighValue    Tier = "HIGH_VALUE"
	TierGood         Tier = "GOOD"
	TierMedium       Tier = "MEDIUM"
	TierNotAProspect Tier = "NOT_A_PROSPECT"
)

// Confidence grades how much page coverage backs the classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Classify assigns the first matching tier, in fixed priority order, plus a
// confidence grade based on how many pages were analyzed. Total: every
// result maps to exactly one tier.
func Classify(r *detect.Result) (Tier, Confidence) {
	confidence := ConfidenceLow
	switch {
	case r.PagesAnalyzed >= 3:
		confidence = ConfidenceHigh
	case r.PagesAnalyzed >= 2:
		confidence = ConfidenceMedium
	}

	switch {
	case !r.HasChatbot && r.HasBookingCapability() && len(r.OTADependencies) > 0:
		return TierHighValue, confidence
	case !r.HasChatbot && r.HasBookingCapability():
		return TierGood, confidence
	case !r.HasChatbot:
		return TierMedium, confidence
	default:
		return TierNotAProspect, confidence
	}
}
