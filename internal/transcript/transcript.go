package transcript

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Line is one caption cue with its time range in seconds.
type Line struct {
	Index int
	Start float64
	End   float64
	Text  string
}

var (
	cueTimePattern = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}\.\d{3}) --> (\d{2}:\d{2}:\d{2}\.\d{3})`)
	tagPattern     = regexp.MustCompile(`<[^>]+>`)
	timestampForm  = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3})$`)
)

// ParseVTT parses WebVTT caption content into ordered lines. Styling tags are
// stripped and cues whose text repeats the previous cue verbatim are dropped,
// which auto-generated captions do constantly.
func ParseVTT(content string) []Line {
	rawLines := strings.Split(content, "\n")

	var (
		parsed   []Line
		prevText string
	)

	i := 0
	for i < len(rawLines) {
		line := strings.TrimSpace(rawLines[i])
		match := cueTimePattern.FindStringSubmatch(line)
		if match == nil {
			i++
			continue
		}

		start, startErr := ParseTimestamp(match[1])
		end, endErr := ParseTimestamp(match[2])

		i++
		var textParts []string
		for i < len(rawLines) {
			cueLine := strings.TrimSpace(rawLines[i])
			if cueLine == "" || cueTimePattern.MatchString(cueLine) {
				break
			}
			clean := strings.TrimSpace(tagPattern.ReplaceAllString(cueLine, ""))
			if clean != "" {
				textParts = append(textParts, clean)
			}
			i++
		}

		if len(textParts) == 0 || startErr != nil || endErr != nil {
			continue
		}
		text := strings.Join(textParts, " ")
		if text == prevText {
			continue
		}
		parsed = append(parsed, Line{
			Index: len(parsed),
			Start: start,
			End:   end,
			Text:  text,
		})
		prevText = text
	}

	return parsed
}

// ParseTimestamp converts an HH:MM:SS.mmm timestamp to seconds.
func ParseTimestamp(value string) (float64, error) {
	match := timestampForm.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	millis, _ := strconv.Atoi(match[4])
	return float64(hours)*3600 + float64(minutes)*60 + float64(seconds) + float64(millis)/1000, nil
}

// FormatTimestamp converts seconds to HH:MM:SS.mmm form.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	rem := seconds - float64(hours*3600+minutes*60)
	millis := int(math.Round(rem * 1000))
	secs := millis / 1000
	millis %= 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}

// JoinText concatenates line texts with newlines, preserving order.
func JoinText(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, "\n")
}
