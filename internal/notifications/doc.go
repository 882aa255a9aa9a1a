// Package notifications delivers job lifecycle push notifications via ntfy.
package notifications
