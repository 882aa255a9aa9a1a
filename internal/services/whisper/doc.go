// Package whisper provides a speech-recognition fallback extractor for
// videos without subtitles, built on yt-dlp audio downloads and uvx-managed
// WhisperX.
package whisper
