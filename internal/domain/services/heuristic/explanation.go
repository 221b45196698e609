package heuristic

const (
	// ThreatExplanation is shown for messages flagged as threats
	ThreatExplanation = "This message contains multiple red flags commonly associated with scam attempts. " +
		"It uses manipulation tactics to create urgency and pressure you into taking action without thinking."
	// SafeExplanation is shown for messages below the threat threshold
	SafeExplanation = "This message appears to be legitimate. No significant threat indicators were detected during our analysis."
)

// Explain returns the fixed explanation for a verdict
func Explain(isThreat bool) string {
	if isThreat {
		return ThreatExplanation
	}
	return SafeExplanation
}
