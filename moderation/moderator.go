package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator replaces forbidden words with a filler character. Matching is
// leet-aware and ignores spacing and punctuation, so "m1d.n1ght" still hits
// a "midnight" entry while the visible text keeps its original length.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

// NewModerator builds the Aho-Corasick automaton over the normalized
// dictionary. Entries that normalize to nothing (pure noise) are dropped.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		norm, _ := normalize([]rune(word))
		if len(norm) == 0 {
			continue
		}
		patterns = append(patterns, norm)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar, log: log}, nil
}

// Censor returns the text with every forbidden span overwritten, plus the
// normalized form of each dictionary word that matched.
func (m *Moderator) Censor(original string) (string, []string) {
	origRunes := []rune(original)
	norm, origIdx := normalize(origRunes)
	if len(norm) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return original, nil
	}

	found := make([]string, 0, len(spans))
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// Overwrite the whole original span, separators included.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
		found = append(found, string(span.Word))
	}
	if len(found) > 0 {
		m.log.Debug("Censored content", "words", found)
	}
	return string(origRunes), found
}

// normalize lowers, de-leets and strips noise, keeping for each retained
// rune its index in the input so matches can be mapped back onto it.
func normalize(input []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		clean := deleet(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

// deleet maps common leet speak characters back to their plain letters.
func deleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters ignored during matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
