// Package wire implements the newline-delimited JSON framing shared by every
// transport in the control mesh: the session endpoint's IPC listener, the
// daemon's control-plane IPC listener, and the peer-to-peer TCP protocol.
//
// There is no length prefix. A per-connection byte accumulator reads raw
// bytes, splits on '\n', and retains the trailing partial line across reads,
// exactly as described in spec.md's Design Notes on byte-stream framing.
package wire
