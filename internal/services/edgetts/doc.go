// Package edgetts renders Korean speech with the edge-tts command line
// tool, splitting long texts at sentence boundaries and joining the
// resulting MP3 fragments.
package edgetts
