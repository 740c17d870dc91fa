// Package federation implements the peer-to-peer wire protocol and
// connection state machine described in spec.md §4.D: a TCP listener plus
// an outbound connector per configured peer, exchanging
// hello/heartbeat/session_added/session_removed/rpc/rpc_response frames.
package federation
