package ytdlp

import "regexp"

var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID pulls the 11-character video identifier out of the common
// YouTube URL forms. It returns false when the URL does not contain one.
func ExtractVideoID(url string) (string, bool) {
	match := videoIDPattern.FindStringSubmatch(url)
	if match == nil {
		return "", false
	}
	return match[1], true
}
