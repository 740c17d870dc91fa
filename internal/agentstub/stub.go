package agentstub

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Sentinel errors raised by Stub.
var (
	ErrEmptyMessage = errors.New("message must not be empty")
	ErrUnknownEntry = errors.New("no such branch entry")
)

// turnLatency is how long Stub simulates "thinking" before producing a
// reply. Deliberately short: this is a fixture, not a model.
const turnLatency = 5 * time.Millisecond

type subscriber struct {
	id int
	fn func(BranchEntry)
}

// Stub is an in-memory Collaborator fixture. One Stub models one
// conversation: Deliver starts a turn on a background goroutine, which
// after turnLatency appends an assistant reply and notifies any
// subscribers. Safe for concurrent use.
type Stub struct {
	mu     sync.Mutex
	branch []BranchEntry
	idle   bool
	gen    uint64
	subs   []subscriber
	nextID int
}

// New creates a Stub with a single root branch entry.
func New() *Stub {
	return &Stub{
		branch: []BranchEntry{{ID: "root", Role: "root", Text: ""}},
		idle:   true,
	}
}

// RootEntryID implements Collaborator.
func (s *Stub) RootEntryID() string { return "root" }

// Deliver implements Collaborator. It always starts (or restarts) a turn;
// the options are ignored, so steer and follow_up deliveries behave the
// same and the requested mode is not recorded.
func (s *Stub) Deliver(message string, _ DeliverOptions) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	s.gen++
	myGen := s.gen
	s.idle = false
	s.nextID++
	id := fmt.Sprintf("e%d", s.nextID)
	s.branch = append(s.branch, BranchEntry{ID: id, Role: "user", Text: message})
	s.mu.Unlock()

	go s.runTurn(message, myGen)
	return nil
}

func (s *Stub) runTurn(message string, myGen uint64) {
	time.Sleep(turnLatency)

	s.mu.Lock()
	if s.gen != myGen {
		// Superseded by Abort or a newer Deliver; drop this turn silently.
		s.mu.Unlock()
		return
	}

	s.nextID++
	entry := BranchEntry{ID: fmt.Sprintf("e%d", s.nextID), Role: "assistant", Text: "ack: " + message}
	s.branch = append(s.branch, entry)
	s.idle = true

	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(entry)
	}
}

// Abort implements Collaborator. Idempotent: aborting an idle session is a
// no-op beyond bumping the generation counter.
func (s *Stub) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.idle = true
}

// RewindTo implements Collaborator.
func (s *Stub) RewindTo(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID == "root" {
		s.branch = s.branch[:1]
		return nil
	}

	for i, e := range s.branch {
		if e.ID == entryID {
			s.branch = s.branch[:i+1]
			return nil
		}
	}
	return ErrUnknownEntry
}

// Branch implements Collaborator.
func (s *Stub) Branch() []BranchEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BranchEntry, len(s.branch))
	copy(out, s.branch)
	return out
}

// Idle implements Collaborator.
func (s *Stub) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

// Subscribe implements Collaborator.
func (s *Stub) Subscribe(fn func(BranchEntry)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
