// Package stage defines the capability contracts the workflow manager needs
// from the extraction, translation, and synthesis services.
package stage
