package heuristic

import (
	"strings"

	"scamshield/internal/domain/models"
)

// Config configures an Analyzer
type Config struct {
	Jitter      bool   // add [0,10) random points to the risk score
	Seed        uint64 // non-zero makes jitter reproducible
	MarkerOpen  string
	MarkerClose string
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{
		Jitter:      true,
		MarkerOpen:  DefaultMarkerOpen,
		MarkerClose: DefaultMarkerClose,
	}
}

// Analyzer runs the full heuristic pipeline: match, score, classify, explain.
// It is safe for concurrent use.
type Analyzer struct {
	lexicon     Lexicon
	scorer      *Scorer
	highlighter *Highlighter
}

// New creates an Analyzer over the default lexicon
func New(cfg Config) *Analyzer {
	var scorer *Scorer
	switch {
	case !cfg.Jitter:
		scorer = NewScorer(nil)
	case cfg.Seed != 0:
		scorer = NewSeededScorer(cfg.Seed)
	default:
		scorer = NewRandomScorer()
	}
	return NewWithScorer(DefaultLexicon, scorer, NewHighlighter(DefaultLexicon, cfg.MarkerOpen, cfg.MarkerClose))
}

// NewWithScorer assembles an Analyzer from explicit parts
func NewWithScorer(lex Lexicon, scorer *Scorer, hl *Highlighter) *Analyzer {
	if hl == nil {
		hl = NewHighlighter(lex, "", "")
	}
	return &Analyzer{
		lexicon:     lex,
		scorer:      scorer,
		highlighter: hl,
	}
}

// Analyze classifies text. Any input, including the empty string, yields
// a complete verdict.
func (a *Analyzer) Analyze(text string) *models.ScanVerdict {
	lowered := strings.ToLower(text)
	tactics := a.lexicon.matchLowered(lowered)
	isThreat := IsThreat(tactics.Len())

	return &models.ScanVerdict{
		IsThreat:    isThreat,
		Risk:        a.scorer.Score(tactics.Len()),
		Category:    Classify(lowered, isThreat),
		Tactics:     tactics,
		Explanation: Explain(isThreat),
	}
}

// Highlight marks the trigger phrases of tactics within text
func (a *Analyzer) Highlight(text string, tactics models.MatchSet) string {
	return a.highlighter.Highlight(text, tactics)
}

// Lexicon returns the lexicon in use
func (a *Analyzer) Lexicon() Lexicon {
	return a.lexicon
}
