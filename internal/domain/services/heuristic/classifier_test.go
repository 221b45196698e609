package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scamshield/internal/domain/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		isThreat bool
		want     models.ScamCategory
	}{
		{"lottery keyword", "you won a prize", false, models.ScamCategoryLottery},
		{"phishing keyword", "please verify your account", true, models.ScamCategoryPhishing},
		{"romance keyword", "dear friend", false, models.ScamCategoryRomance},
		{"tech keyword", "call microsoft support", false, models.ScamCategoryTech},
		{"threat without keyword", "urgent: send cash now", true, models.ScamCategoryPhishing},
		{"safe without keyword", "see you at lunch", false, models.ScamCategoryNone},
		{"phishing beats romance", "dear, verify your account now", true, models.ScamCategoryPhishing},
		{"lottery beats everything", "my love, you won the lottery, verify at microsoft", true, models.ScamCategoryLottery},
		{"romance beats tech", "i love my computer", false, models.ScamCategoryRomance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, tt.isThreat))
		})
	}
}

func TestExplain(t *testing.T) {
	assert.Equal(t, ThreatExplanation, Explain(true))
	assert.Equal(t, SafeExplanation, Explain(false))
	assert.NotEqual(t, Explain(true), Explain(false))
}
