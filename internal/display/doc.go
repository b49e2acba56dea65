// Package display routes campaigns to presenters on the foreground loop.
package display
