// Package ipc exposes daemon control over a Unix domain socket using
// JSON-RPC. The CLI talks to the daemon exclusively through this surface.
package ipc
