// Package output defines the on-disk layout for finished jobs and the
// title-to-filename slug rules shared across the pipeline.
package output
