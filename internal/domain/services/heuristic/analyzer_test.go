package heuristic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scamshield/internal/domain/models"
)

func TestAnalyzer_Examples(t *testing.T) {
	a := New(Config{})

	tests := []struct {
		name     string
		text     string
		isThreat bool
		risk     int
		category models.ScamCategory
		tactics  models.MatchSet
	}{
		{
			name:     "lottery win",
			text:     "Congratulations! You've won $1,000,000! Click here now!",
			isThreat: true,
			risk:     45,
			category: models.ScamCategoryLottery,
			tactics:  models.MatchSet{models.TacticUrgency, models.TacticMoney, models.TacticAction},
		},
		{
			name:     "meeting reminder",
			text:     "Meeting reminder: Quarterly review tomorrow at 3pm",
			isThreat: false,
			risk:     5,
			category: models.ScamCategoryNone,
			tactics:  models.MatchSet{},
		},
		{
			name:     "empty",
			text:     "",
			isThreat: false,
			risk:     5,
			category: models.ScamCategoryNone,
			tactics:  models.MatchSet{},
		},
		{
			name:     "phishing wins over romance",
			text:     "dear, verify your account now",
			isThreat: true,
			risk:     45,
			category: models.ScamCategoryPhishing,
			tactics:  models.MatchSet{models.TacticUrgency, models.TacticFear, models.TacticPersonal},
		},
		{
			name:     "category on a safe message",
			text:     "Contact Microsoft support",
			isThreat: false,
			risk:     15,
			category: models.ScamCategoryTech,
			tactics:  models.MatchSet{models.TacticAuthority},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := a.Analyze(tt.text)
			require.NotNil(t, v)
			assert.Equal(t, tt.isThreat, v.IsThreat)
			assert.Equal(t, tt.risk, v.Risk)
			assert.Equal(t, tt.category, v.Category)
			assert.Equal(t, tt.tactics, v.Tactics)
			assert.Equal(t, Explain(tt.isThreat), v.Explanation)
		})
	}
}

func TestAnalyzer_JitteredRiskStaysInRange(t *testing.T) {
	a := New(DefaultConfig())
	for i := 0; i < 200; i++ {
		v := a.Analyze("Congratulations! You've won $1,000,000! Click here now!")
		assert.GreaterOrEqual(t, v.Risk, 45)
		assert.LessOrEqual(t, v.Risk, 55)
		assert.Equal(t, models.ScamCategoryLottery, v.Category)

		safe := a.Analyze("Meeting reminder: Quarterly review tomorrow at 3pm")
		assert.GreaterOrEqual(t, safe.Risk, 5)
		assert.LessOrEqual(t, safe.Risk, 10)
	}
}

func TestAnalyzer_Invariants(t *testing.T) {
	a := New(Config{Jitter: true, Seed: 99})
	corpus := []string{
		"",
		"hello",
		"URGENT!!! Your IRS refund is frozen. Wire $500 now.",
		"My beloved, I am a widow with an inheritance. Send your bank details.",
		"Your Amazon order shipped",
		"Act fast: limited time prize, click here",
		"Microsoft detected unauthorized access on your computer, call now",
		"don't delay, confirm your password immediately",
	}

	for _, text := range corpus {
		v := a.Analyze(text)
		n := v.Tactics.Len()
		assert.Equal(t, n >= 2, v.IsThreat, text)
		assert.GreaterOrEqual(t, v.Risk, clampRisk(n*pointsPerTactic), text)
		assert.LessOrEqual(t, v.Risk, clampRisk(n*pointsPerTactic+jitterSpan), text)
		if v.Category == models.ScamCategoryNone {
			assert.False(t, v.IsThreat, text)
		}
		assert.Equal(t, v.Category, a.Analyze(text).Category, "category must be deterministic")
	}
}

func TestAnalyzer_ConcurrentUse(t *testing.T) {
	a := New(Config{Jitter: true, Seed: 1})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v := a.Analyze("urgent: verify your bank password")
				assert.True(t, v.IsThreat)
			}
		}()
	}
	wg.Wait()
}
