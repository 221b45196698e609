package heuristic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"scamshield/internal/domain/models"
)

func TestHighlighter_PreservesCasing(t *testing.T) {
	h := NewHighlighter(DefaultLexicon, "", "")
	got := h.Highlight("Click HERE now", models.MatchSet{models.TacticUrgency, models.TacticAction})
	assert.Equal(t,
		`<span class="highlight-danger">Click HERE</span> <span class="highlight-danger">now</span>`,
		got,
	)
}

func TestHighlighter_OnlyGivenTactics(t *testing.T) {
	h := NewHighlighter(DefaultLexicon, "[", "]")

	tests := []struct {
		name    string
		text    string
		tactics models.MatchSet
		want    string
	}{
		{"subset of tactics", "urgent cash", models.MatchSet{models.TacticUrgency}, "[urgent] cash"},
		{"no tactics", "urgent cash", models.MatchSet{}, "urgent cash"},
		{"unknown tactic", "urgent cash", models.MatchSet{models.Tactic("greed")}, "urgent cash"},
		{"every occurrence", "Now, now, NOW", models.MatchSet{models.TacticUrgency}, "[Now], [now], [NOW]"},
		{"empty text", "", models.MatchSet{models.TacticMoney}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Highlight(tt.text, tt.tactics))
		})
	}
}

func TestHighlighter_CompoundsSequentialPasses(t *testing.T) {
	h := NewHighlighter(DefaultLexicon, "<<", ">>")
	got := h.Highlight("Beloved Princess", models.MatchSet{models.TacticPersonal})
	assert.Equal(t, "<<Beloved>> <<<<Prince>>ss>>", got)
}

func TestHighlighter_StripsBackToOriginal(t *testing.T) {
	a := New(Config{})
	text := "URGENT: your Bank account is locked, wire the cash now or call now!"
	v := a.Analyze(text)

	marked := a.Highlight(text, v.Tactics)
	assert.NotEqual(t, text, marked)

	stripped := strings.ReplaceAll(marked, DefaultMarkerOpen, "")
	stripped = strings.ReplaceAll(stripped, DefaultMarkerClose, "")
	assert.Equal(t, text, stripped)
}

func TestHighlighter_MetaCharactersAreLiteral(t *testing.T) {
	lex := Lexicon{{Tactic: models.TacticMoney, Phrases: []string{"$100"}}}
	h := NewHighlighter(lex, "[", "]")
	assert.Equal(t, "win [$100] today", h.Highlight("win $100 today", models.MatchSet{models.TacticMoney}))
}
