// Package merger assembles per-segment translations and audio fragments
// into final transcript and MP3 outputs, in sequence order.
package merger
