// Package control implements the daemon's own IPC listener: the
// status/peer-admin/list/relay/subscribe surface described in spec.md
// §4.E, wired to a session.Table (local sessions, from the Discovery
// Watcher) and a federation.Manager (peer sessions and RPC transport).
package control
