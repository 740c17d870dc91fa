package agentstub

// BranchEntry is one turn on the conversation branch: a user prompt or the
// trailing assistant message that answered it.
type BranchEntry struct {
	ID   string
	Role string // "user" or "assistant"
	Text string
}

// DeliverOptions controls how a delivered message is applied relative to an
// in-progress turn (spec.md §4.B `send`).
type DeliverOptions struct {
	// TriggerTurn starts a new turn if the session is idle.
	TriggerTurn bool
	// DeliverAs is "steer" (interrupt/prepend) or "follow_up" (queue after
	// the current turn) when the session is busy.
	DeliverAs string
}

// Collaborator is the host-agent contract the session endpoint depends on
// (spec.md §4.B "Agent collaborator contract"): deliver a message, abort the
// current turn, rewind to an earlier branch entry, read the branch, check
// idleness, and be notified when a turn completes.
type Collaborator interface {
	// Deliver hands a message to the agent under the given options.
	Deliver(message string, opts DeliverOptions) error

	// Abort cancels any in-progress turn. Always succeeds, even when idle.
	Abort()

	// RewindTo moves the branch pointer to entryID. Rewinding to the root
	// entry ID is always valid.
	RewindTo(entryID string) error

	// Branch returns a read-only snapshot of the current branch, root
	// first.
	Branch() []BranchEntry

	// RootEntryID returns the id of the branch root.
	RootEntryID() string

	// Idle reports whether the agent is between turns.
	Idle() bool

	// Subscribe registers fn to be called exactly once, the next time a
	// turn completes. It returns a cancel function that unregisters fn if
	// the turn has not yet completed.
	Subscribe(fn func(BranchEntry)) (cancel func())
}
