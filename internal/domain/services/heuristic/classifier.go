package heuristic

import "scamshield/internal/domain/models"

// categoryRule assigns category when any keyword is present
type categoryRule struct {
	category models.ScamCategory
	keywords []string
}

// categoryRules are evaluated in order; the first hit wins
var categoryRules = []categoryRule{
	{category: models.ScamCategoryLottery, keywords: []string{"lottery", "won", "prize"}},
	{category: models.ScamCategoryPhishing, keywords: []string{"verify", "suspended", "account"}},
	{category: models.ScamCategoryRomance, keywords: []string{"love", "princess", "dear"}},
	{category: models.ScamCategoryTech, keywords: []string{"microsoft", "support", "computer"}},
}

// Classify labels lowercased text. Without a keyword hit the label is
// phishing for threats and none otherwise. The label does not depend on
// isThreat when a keyword matches, so a safe message can still carry one.
func Classify(lowered string, isThreat bool) models.ScamCategory {
	for _, rule := range categoryRules {
		if containsAny(lowered, rule.keywords) {
			return rule.category
		}
	}
	if isThreat {
		return models.ScamCategoryPhishing
	}
	return models.ScamCategoryNone
}
