package gate

import (
	"strings"
	"unicode"
)

// nonTerminalAbbreviations are tokens whose trailing period does not end a
// sentence in dictated text.
var nonTerminalAbbreviations = map[string]struct{}{
	// Latin/editorial abbreviations.
	"e.g": {},
	"i.e": {},
	"cf":  {},
	"etc": {},
	"vs":  {},

	// Titles/honorifics.
	"dr":   {},
	"mr":   {},
	"mrs":  {},
	"ms":   {},
	"prof": {},
	"sr":   {},
	"jr":   {},

	// Units/time abbreviations frequently heard in speech.
	"hr":   {},
	"hrs":  {},
	"lb":   {},
	"lbs":  {},
	"min":  {},
	"mins": {},
	"oz":   {},
	"tbsp": {},
	"tsp":  {},
}

// endsWithTerminalPunctuation reports whether the text closes a sentence.
//
// '!' and '?' always terminate. A trailing '.' terminates unless it belongs
// to a known abbreviation or an initialism such as "u.s.".
func endsWithTerminalPunctuation(text string) bool {
	runes := []rune(strings.TrimRight(text, " \t\n"))
	if len(runes) == 0 {
		return false
	}

	switch runes[len(runes)-1] {
	case '!', '?':
		return true
	case '.':
		token := strings.ToLower(tokenBeforePeriod(runes, len(runes)-1))
		if token == "" {
			return true
		}
		if _, ok := nonTerminalAbbreviations[token]; ok {
			return false
		}
		return !looksLikeInitialism(token)
	default:
		return false
	}
}

// tokenBeforePeriod extracts the word immediately preceding runes[idx].
func tokenBeforePeriod(runes []rune, idx int) string {
	start := idx - 1
	for start >= 0 {
		if r := runes[start]; unicode.IsLetter(r) || r == '.' {
			start--
			continue
		}
		break
	}
	return strings.Trim(string(runes[start+1:idx]), ".")
}

// looksLikeInitialism reports dotted single-letter sequences like "u.s".
func looksLikeInitialism(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		runes := []rune(part)
		if len(runes) != 1 || !unicode.IsLetter(runes[0]) {
			return false
		}
	}
	return true
}
