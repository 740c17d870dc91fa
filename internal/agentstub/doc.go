// Package agentstub implements a fixture host-agent collaborator: the four
// operations the session endpoint consumes from a real coding-agent process
// (spec.md §1, §4.B), backed by an in-memory conversation branch instead of
// a real model. It exists for manual exercising of the endpoint (see
// cmd/pi-agent-stub) and for the endpoint package's own tests; it is not
// part of the core control-mesh contract.
package agentstub
