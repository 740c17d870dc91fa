// Package endpoint implements the per-session IPC listener described in
// spec.md §4.B: one newline-delimited JSON socket per agent session,
// dispatching send/get_message/get_summary/clear/abort/subscribe against a
// host agentstub.Collaborator and maintaining the session's alias symlink.
package endpoint
