// Package services holds shared plumbing for the external tool adapters:
// the sentinel error taxonomy with Wrap, retry classification, and context
// annotations that carry job, segment, stage, and correlation identifiers.
package services
