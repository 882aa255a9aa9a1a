// Package ytdlp wraps the yt-dlp command line tool for video metadata probes
// and subtitle extraction.
package ytdlp
