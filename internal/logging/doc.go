// Package logging builds the slog loggers used across the daemon and CLI.
//
// It offers a console handler for interactive use, a JSON handler for log
// shipping, context-derived field helpers, and the canonical structured
// field names so every component logs job, segment, and stage identifiers
// the same way.
package logging
