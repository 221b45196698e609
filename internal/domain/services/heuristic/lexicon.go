// Package heuristic is the local fallback classifier used when the remote
// scan backend cannot be reached. It is keyword based and stateless.
package heuristic

import (
	"strings"

	"scamshield/internal/domain/models"
)

// TacticPhrases binds a tactic to its ordered trigger phrases
type TacticPhrases struct {
	Tactic  models.Tactic `json:"tactic"`
	Phrases []string      `json:"phrases"`
}

// Lexicon is the ordered list of tactics and their phrases. Order matters:
// it fixes the order of MatchSet output and of highlight passes.
type Lexicon []TacticPhrases

// DefaultLexicon is the built-in trigger vocabulary
var DefaultLexicon = Lexicon{
	{Tactic: models.TacticUrgency, Phrases: []string{"urgent", "immediately", "now", "hurry", "limited time", "act fast", "don't delay"}},
	{Tactic: models.TacticMoney, Phrases: []string{"won", "lottery", "million", "prize", "inheritance", "free money", "cash"}},
	{Tactic: models.TacticFear, Phrases: []string{"suspended", "frozen", "locked", "verify", "confirm", "unauthorized", "illegal"}},
	{Tactic: models.TacticAuthority, Phrases: []string{"bank", "irs", "amazon", "microsoft", "apple", "google", "government"}},
	{Tactic: models.TacticPersonal, Phrases: []string{"dear", "beloved", "princess", "prince", "widow", "dying wish"}},
	{Tactic: models.TacticAction, Phrases: []string{"click here", "call now", "send", "wire", "transfer", "bank details", "password"}},
}

// Match returns the tactics with at least one phrase occurring in text.
// Matching is a plain case-insensitive substring test; "won" matches
// inside "wonderful".
func (l Lexicon) Match(text string) models.MatchSet {
	return l.matchLowered(strings.ToLower(text))
}

func (l Lexicon) matchLowered(lowered string) models.MatchSet {
	set := models.MatchSet{}
	for _, entry := range l {
		if containsAny(lowered, entry.Phrases) {
			set = append(set, entry.Tactic)
		}
	}
	return set
}

// Phrases returns the trigger phrases for t, or nil if t is not in the lexicon
func (l Lexicon) Phrases(t models.Tactic) []string {
	for _, entry := range l {
		if entry.Tactic == t {
			return entry.Phrases
		}
	}
	return nil
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
