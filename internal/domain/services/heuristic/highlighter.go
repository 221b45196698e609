package heuristic

import (
	"regexp"

	"scamshield/internal/domain/models"
)

const (
	DefaultMarkerOpen  = `<span class="highlight-danger">`
	DefaultMarkerClose = `</span>`
)

// Highlighter wraps trigger phrases in display markers
type Highlighter struct {
	lexicon  Lexicon
	open     string
	close    string
	patterns map[models.Tactic][]*regexp.Regexp
}

// NewHighlighter precompiles a case-insensitive pattern per phrase.
// Empty markers fall back to the defaults.
func NewHighlighter(lex Lexicon, open, close string) *Highlighter {
	if open == "" && close == "" {
		open, close = DefaultMarkerOpen, DefaultMarkerClose
	}
	h := &Highlighter{
		lexicon:  lex,
		open:     open,
		close:    close,
		patterns: make(map[models.Tactic][]*regexp.Regexp, len(lex)),
	}
	for _, entry := range lex {
		res := make([]*regexp.Regexp, 0, len(entry.Phrases))
		for _, p := range entry.Phrases {
			res = append(res, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(p)))
		}
		h.patterns[entry.Tactic] = res
	}
	return h
}

// Highlight marks every occurrence of the phrases of each tactic in
// tactics. Passes run in lexicon order on the output of the previous pass,
// so a span produced earlier can be wrapped again by a later phrase.
// The matched text is reused, keeping its original casing. Tactics that
// are not in the lexicon are ignored. The text is not HTML-escaped.
func (h *Highlighter) Highlight(text string, tactics models.MatchSet) string {
	if text == "" || len(tactics) == 0 {
		return text
	}
	for _, entry := range h.lexicon {
		if !tactics.Contains(entry.Tactic) {
			continue
		}
		for _, re := range h.patterns[entry.Tactic] {
			text = re.ReplaceAllStringFunc(text, h.wrap)
		}
	}
	return text
}

func (h *Highlighter) wrap(match string) string {
	return h.open + match + h.close
}
