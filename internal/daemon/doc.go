// Package daemon wires the in-app messaging runtime for iamd: the two loops,
// the campaign repository, the dispatch queue, presenters, the tooltip
// positioner, attempt history and the file watchers that keep them current.
package daemon
