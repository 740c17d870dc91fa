// Package session holds the shared SessionInfo type and the concurrency-
// safe table of known sessions, used by both the local Discovery Watcher
// (internal/discovery) and the Peer Federation's per-peer session sets
// (internal/federation).
package session
