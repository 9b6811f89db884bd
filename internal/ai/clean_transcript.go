package ai

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// fillerPhrases are removed by CleanFillers, in this order.
var fillerPhrases = []string{
	"ehm", "mmm", "uhm", "uh",
	"allora", "cioè", "ecco",
	"ok adesso", "ok ora", "ho sbagliato",
	"vediamo", "vediamo un attimo", "un attimo",
	"in pratica", "in realtà", "in effetti",
	"quindi", "insomma", "come dire",
	"capito", "va bene",
}

// formalReplacements maps colloquial Italian to academic register.
var formalReplacements = []struct{ from, to string }{
	{"cosa", "ciò che"},
	{"c'è", "vi è"},
	{"però", "tuttavia"},
	{"insomma", "in conclusione"},
	{"un sacco di", "numerosi"},
	{"tanto", "considerevolmente"},
	{"per cui", "pertanto"},
	{"cioè", "ovvero"},
}

var (
	fillerPatterns = compilePhrases(fillerPhrases)
	formalPatterns = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(formalReplacements))
		for i, r := range formalReplacements {
			out[i] = compilePhrase(r.from)
		}
		return out
	}()

	multiSpace      = regexp.MustCompile(` +`)
	spaceBeforeMark = regexp.MustCompile(` ([,.!?:;])`)
	wsBeforeMark    = regexp.MustCompile(`\s+([.,;:!?])`)
	markThenText    = regexp.MustCompile(`([.,;:!?])([^\s\d.,;:!?])`)
	anyWhitespace   = regexp.MustCompile(`\s+`)
)

func compilePhrases(phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(phrases))
	for i, p := range phrases {
		out[i] = compilePhrase(p)
	}
	return out
}

// compilePhrase matches p case-insensitively with any whitespace run between
// its words. Word boundaries are checked separately by isBoundary.
func compilePhrase(p string) *regexp.Regexp {
	words := strings.Fields(p)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(words, `\s+`))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isBoundary reports whether s[start:end] is not glued to a letter, digit or
// underscore on either side.
func isBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// replaceWholeWords replaces every whole-word match of re in s. repl gets
// the matched text.
func replaceWholeWords(s string, re *regexp.Regexp, repl func(string) string) string {
	var b strings.Builder
	pos := 0
	last := 0
	for pos <= len(s) {
		loc := re.FindStringIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && isBoundary(s, start, end) {
			b.WriteString(s[last:start])
			b.WriteString(repl(s[start:end]))
			last, pos = end, end
			continue
		}
		// Retry one rune further so overlapping candidates are not skipped.
		_, size := utf8.DecodeRuneInString(s[start:])
		if size == 0 {
			break
		}
		pos = start + size
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func cleanPass(text string) string {
	for _, re := range fillerPatterns {
		text = replaceWholeWords(text, re, func(string) string { return "" })
	}
	text = multiSpace.ReplaceAllString(text, " ")
	text = spaceBeforeMark.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// CleanFillers removes Italian hesitations, discourse fillers and
// self-corrections, then tidies the spacing left behind. Applying it twice
// gives the same result as applying it once.
func CleanFillers(text string) string {
	for {
		next := cleanPass(text)
		if next == text {
			return next
		}
		text = next
	}
}

// CorrectAcademic is the rule-based stand-in for model correction. It
// capitalizes the first letter, ends the text with terminal punctuation and
// normalizes spacing around punctuation. With style "academic" it also
// swaps colloquial expressions for formal ones.
func CorrectAcademic(text, style string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	text = capitalizeFirst(text)
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}

	text = wsBeforeMark.ReplaceAllString(text, "$1")
	text = markThenText.ReplaceAllString(text, "$1 $2")
	text = anyWhitespace.ReplaceAllString(text, " ")

	if style == "academic" {
		for i, re := range formalPatterns {
			formal := formalReplacements[i].to
			text = replaceWholeWords(text, re, func(match string) string {
				return matchCase(match, formal)
			})
		}
	}
	return text
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// matchCase capitalizes repl when match starts with an upper-case letter.
func matchCase(match, repl string) string {
	r, _ := utf8.DecodeRuneInString(match)
	if unicode.IsUpper(r) {
		return capitalizeFirst(repl)
	}
	return repl
}
