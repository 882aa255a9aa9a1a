// Package transcript parses WebVTT captions into timed lines and cleans up
// the artifacts of auto-generated subtitles: rolling duplicates, spoken
// fillers, and sentence fragments split across cues.
package transcript
