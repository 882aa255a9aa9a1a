package transcript

import (
	"regexp"
	"strings"
)

// mergeBufferLimit flushes a sentence-merge buffer even without terminal
// punctuation, so run-on auto captions cannot grow without bound.
const mergeBufferLimit = 200

var fillerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(um|uh|er|ah|like|you know|I mean|so|well|basically|actually|literally)\b`),
	regexp.MustCompile(`(?i)\b(kind of|sort of|right\?|okay\?|yeah\?)\b`),
}

var whitespacePattern = regexp.MustCompile(`\s+`)

var sentenceEnders = []string{".", "!", "?", "。", "！", "？", "…"}

// Preprocess cleans auto-generated caption lines: rolling duplicates are
// removed, then short fragments are merged into whole sentences. Indexes are
// renumbered on the result.
func Preprocess(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}

	// Pass 1: rolling duplicate removal. Auto captions repeat the tail of
	// the previous cue at the head of the next one.
	var (
		cleaned  []Line
		prevText string
	)
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}

		original := text
		if prevText != "" && strings.HasPrefix(text, prevText) {
			if text == prevText {
				continue
			}
			text = strings.TrimSpace(text[len(prevText):])
			if text == "" {
				continue
			}
		} else if prevText != "" && strings.Contains(text, prevText) {
			text = strings.TrimSpace(strings.Replace(text, prevText, "", 1))
			if text == "" {
				continue
			}
		}

		line.Text = text
		cleaned = append(cleaned, line)
		prevText = original
	}

	// Pass 2: merge fragments until a sentence ends or the buffer fills.
	var (
		merged []Line
		buffer Line
		open   bool
	)
	flush := func() {
		if open {
			buffer.Index = len(merged)
			merged = append(merged, buffer)
			open = false
		}
	}
	for _, line := range cleaned {
		if !open {
			buffer = line
			open = true
		} else {
			buffer.Text += " " + line.Text
			buffer.End = line.End
		}
		if IsSentenceEnd(buffer.Text) || len(buffer.Text) > mergeBufferLimit {
			flush()
		}
	}
	flush()

	return merged
}

// RemoveFillers strips spoken-filler words, collapses whitespace, and drops
// immediately repeated words ("I I" becomes "I").
func RemoveFillers(text string) string {
	result := text
	for _, pattern := range fillerPatterns {
		result = pattern.ReplaceAllString(result, "")
	}
	result = strings.TrimSpace(whitespacePattern.ReplaceAllString(result, " "))
	return collapseRepeatedWords(result)
}

// collapseRepeatedWords removes consecutive duplicate words case-insensitively.
// RE2 has no backreferences, so this is a manual scan.
func collapseRepeatedWords(text string) string {
	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}
	out := words[:1]
	for _, word := range words[1:] {
		if strings.EqualFold(word, out[len(out)-1]) {
			continue
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

// RemoveDuplicateLines drops consecutive duplicate lines from translated
// output, preferring the longer line when one contains the other.
func RemoveDuplicateLines(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	prev := ""

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			result = append(result, line)
			prev = ""
			continue
		}
		if stripped == prev {
			continue
		}
		if prev != "" && strings.Contains(stripped, prev) {
			if len(result) > 0 {
				result[len(result)-1] = line
			} else {
				result = append(result, line)
			}
			prev = stripped
			continue
		}
		if prev != "" && strings.Contains(prev, stripped) {
			continue
		}
		result = append(result, line)
		prev = stripped
	}

	return strings.Join(result, "\n")
}

// IsSentenceEnd reports whether text ends with terminal punctuation,
// covering both Latin and CJK sentence enders.
func IsSentenceEnd(text string) bool {
	trimmed := strings.TrimRight(text, " \t")
	if trimmed == "" {
		return false
	}
	for _, ender := range sentenceEnders {
		if strings.HasSuffix(trimmed, ender) {
			return true
		}
	}
	return false
}
