// Package daemon wires the queue store, workflow manager, and inbox watcher
// into a single-instance background service.
package daemon
