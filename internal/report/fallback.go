package report

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const extractSize = 3

// SplitSentences cuts text after '.', '!' or '?' when followed by
// whitespace. The punctuation stays with its sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j < len(text) {
			next, n := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(next) {
				break
			}
			j += n
		}
		if j > i {
			out = append(out, text[start:i])
			start, i = j, j
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// Extracts are the three transcript blocks the fallback is built from.
type Extracts struct {
	Intro      string
	Methods    string
	Conclusion string
}

// Extract picks up to three sentences from the start, from the midpoint and
// from the end. On short transcripts the blocks overlap.
func Extract(sentences []string) Extracts {
	n := len(sentences)
	mid := n / 2
	return Extracts{
		Intro:      strings.Join(sentences[:min(extractSize, n)], " "),
		Methods:    strings.Join(sentences[mid:mid+min(extractSize, n-mid)], " "),
		Conclusion: strings.Join(sentences[max(0, n-extractSize):], " "),
	}
}

func (e Extracts) source(name string) string {
	switch name {
	case SourceIntro:
		return e.Intro
	case SourceMethods:
		return e.Methods
	case SourceConclusion:
		return e.Conclusion
	}
	return ""
}

// RenderFallback builds the local document for transcript. The output
// depends only on the template and the transcript.
func (t *Template) RenderFallback(transcript string) string {
	ex := Extract(SplitSentences(transcript))

	if t.Layout == LayoutParagraph {
		return truncateWords(ex.Intro+" "+ex.Methods+" "+ex.Conclusion, t.WordLimit)
	}

	var b strings.Builder
	for i, s := range t.Skeleton {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(s.Heading)
		b.WriteString("\n")
		if s.Text != "" {
			b.WriteString(s.Text)
		} else {
			b.WriteString(ex.source(s.Source))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// truncateWords normalizes whitespace and keeps at most limit words,
// marking a cut with "...".
func truncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) > limit {
		return strings.Join(words[:limit], " ") + "..."
	}
	return strings.Join(words, " ")
}
