// Package chunker splits a cleaned transcript into translation-sized chunks
// bounded by character and duration budgets, preferring sentence boundaries.
package chunker
