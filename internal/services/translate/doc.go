// Package translate implements the translation stage against an
// OpenAI-compatible chat completions API, with retry and backoff for
// transient endpoint failures.
package translate
