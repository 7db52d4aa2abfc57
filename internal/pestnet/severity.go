package pestnet

// Confidence bands reported with every prediction.
const (
	SeverityHigh    = "High Confidence"
	SeverityMedium  = "Medium Confidence"
	SeverityLow     = "Low Confidence"
	SeverityVeryLow = "Very Low Confidence"
)

// SeverityLevel maps a top-1 confidence to its band. Lower bounds are inclusive.
func SeverityLevel(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return SeverityHigh
	case confidence >= 0.7:
		return SeverityMedium
	case confidence >= 0.5:
		return SeverityLow
	default:
		return SeverityVeryLow
	}
}
