// Package watcher feeds the queue from an inbox directory: dropping a .url
// file submits its URLs for dubbing.
package watcher
