// Package negation turns questionnaire statements into their negated form.
//
// The negated text is only used as a polarity anchor by the matching engine and is never
// shown to users, so the rules aim for a stable, deterministic transformation rather than
// grammatical perfection.
package negation

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// RuleNegator negates statements with per-language word rules.
// Unsupported languages use the English rules.
type RuleNegator struct{}

// NewRuleNegator returns a RuleNegator.
func NewRuleNegator() *RuleNegator {
	return &RuleNegator{}
}

// Negate returns the negated form of text. Negated statements become positive.
func (n *RuleNegator) Negate(text, language string) (string, error) {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return "", nil
	}
	words := strings.Fields(text)

	var out []string
	switch strings.ToLower(language) {
	case "pt":
		out = negateParticle(words, "não", portuguesePronouns)
	case "es":
		out = negateParticle(words, "no", spanishPronouns)
	case "fr":
		out = negateFrench(words)
	case "de":
		out = negateGerman(words)
	default:
		out = negateEnglish(words)
	}
	return strings.Join(out, " "), nil
}

var (
	englishAuxiliaries = set("am", "is", "are", "was", "were", "can", "could", "will", "would",
		"should", "must", "might", "may", "have", "has", "had", "do", "does", "did")
	englishContractions = map[string]string{
		"don't": "", "doesn't": "", "didn't": "", "isn't": "is", "aren't": "are",
		"wasn't": "was", "weren't": "were", "can't": "can", "cannot": "can", "won't": "will",
		"wouldn't": "would", "shouldn't": "should", "couldn't": "could", "haven't": "have",
		"hasn't": "has", "hadn't": "had",
	}
	englishThirdPerson  = set("he", "she", "it", "this", "that")
	englishPronouns     = set("i", "you", "we", "they", "he", "she", "it", "this", "that")
	portuguesePronouns  = set("eu", "tu", "você", "ele", "ela", "nós", "vocês", "eles", "elas")
	spanishPronouns     = set("yo", "tú", "usted", "él", "ella", "nosotros", "ustedes", "ellos", "ellas")
	frenchPronouns      = set("je", "j'", "tu", "il", "elle", "on", "nous", "vous", "ils", "elles")
	germanNegations     = set("nicht", "nie", "kein", "keine", "keinen", "keinem", "keiner")
	englishNegatorWords = set("not", "never", "no")
)

func negateEnglish(words []string) []string {
	for i, w := range words {
		key := bare(w)
		if repl, ok := englishContractions[key]; ok {
			return replaceAt(words, i, matchCase(w, repl))
		}
		if _, ok := englishNegatorWords[key]; ok {
			// "do not feel" becomes "feel"
			if i > 0 && (bare(words[i-1]) == "do" || bare(words[i-1]) == "does" || bare(words[i-1]) == "did") {
				return append(clone(words[:i-1]), words[i+1:]...)
			}
			return replaceAt(words, i, "")
		}
	}

	for i, w := range words {
		if _, ok := englishAuxiliaries[bare(w)]; ok {
			return insertAt(words, i+1, "not")
		}
	}

	if _, ok := englishPronouns[bare(words[0])]; ok && len(words) > 1 {
		if _, third := englishThirdPerson[bare(words[0])]; third {
			return insertAt(words, 1, "doesn't")
		}
		return insertAt(words, 1, "don't")
	}
	return insertAt(words, 0, matchCase(words[0], "not"))
}

// negateParticle handles languages that negate with a single particle before the verb.
func negateParticle(words []string, particle string, pronouns map[string]struct{}) []string {
	for i, w := range words {
		if bare(w) == particle {
			return replaceAt(words, i, "")
		}
	}
	pos := 0
	for pos < len(words)-1 {
		if _, ok := pronouns[bare(words[pos])]; !ok {
			break
		}
		pos++
	}
	if pos == 0 {
		return insertAt(words, 0, matchCase(words[0], particle))
	}
	return insertAt(words, pos, particle)
}

func negateFrench(words []string) []string {
	var out []string
	negated := false
	for _, w := range words {
		b := bare(w)
		switch {
		case b == "ne" || b == "pas" || b == "jamais":
			negated = true
			continue
		case strings.HasPrefix(b, "n'") && len(b) > 2:
			negated = true
			_, rest, _ := strings.Cut(strings.ReplaceAll(w, "’", "'"), "'")
			out = append(out, rest)
			continue
		}
		out = append(out, w)
	}
	if negated && len(out) > 0 {
		return out
	}

	pos := 0
	if _, ok := frenchPronouns[bare(words[0])]; ok && len(words) > 1 {
		pos = 1
	}
	verb := words[pos]
	ne := "ne"
	if startsWithVowel(verb) {
		ne = "n'"
	}
	res := clone(words[:pos])
	if ne == "n'" {
		res = append(res, "n'"+verb, "pas")
	} else {
		res = append(res, "ne", verb, "pas")
	}
	return append(res, words[pos+1:]...)
}

func negateGerman(words []string) []string {
	for i, w := range words {
		if _, ok := germanNegations[bare(w)]; ok {
			return replaceAt(words, i, "")
		}
	}
	if len(words) < 2 {
		return insertAt(words, 0, "nicht")
	}
	// main clause verb is in second position; "nicht" goes before the final complement
	return insertAt(words, len(words)-1, "nicht")
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// bare lowercases w and strips surrounding punctuation, keeping apostrophes.
func bare(w string) string {
	w = strings.ReplaceAll(w, "’", "'")
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	}))
}

func clone(words []string) []string {
	return append([]string(nil), words...)
}

// replaceAt replaces words[i]; an empty replacement removes the word but keeps trailing punctuation.
func replaceAt(words []string, i int, repl string) []string {
	out := clone(words)
	if repl != "" {
		out[i] = repl + trailingPunct(words[i])
		return out
	}
	if p := trailingPunct(words[i]); p != "" && i > 0 {
		out[i-1] += p
	}
	return append(out[:i], out[i+1:]...)
}

func insertAt(words []string, i int, word string) []string {
	out := make([]string, 0, len(words)+1)
	out = append(out, words[:i]...)
	if i == 0 && len(words) > 0 {
		out = append(out, word, lowerFirst(words[0]))
		return append(out, words[1:]...)
	}
	out = append(out, word)
	return append(out, words[i:]...)
}

func trailingPunct(w string) string {
	end := len(w)
	for end > 0 {
		r := rune(w[end-1])
		if r >= 0x80 || unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' {
			break
		}
		end--
	}
	return w[end:]
}

func matchCase(original, word string) string {
	if word == "" || original == "" {
		return word
	}
	r := []rune(original)
	if unicode.IsUpper(r[0]) {
		w := []rune(word)
		w[0] = unicode.ToUpper(w[0])
		return string(w)
	}
	return word
}

func lowerFirst(w string) string {
	r := []rune(w)
	if len(r) > 1 && unicode.IsUpper(r[0]) && !unicode.IsUpper(r[1]) && w != "I" {
		r[0] = unicode.ToLower(r[0])
	}
	return string(r)
}

func startsWithVowel(w string) bool {
	b := bare(w)
	if b == "" {
		return false
	}
	return strings.ContainsRune("aeiouyhâàéèêîôû", []rune(b)[0])
}
