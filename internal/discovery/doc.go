// Package discovery implements the daemon's local Discovery Watcher
// (spec.md §4.C): an fsnotify-driven scan of the control directory that
// maintains the local-session table and assigns whimsical names to
// newly-seen sessions.
package discovery
