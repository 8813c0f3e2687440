package pairing

import (
	"sync"

	"code.roadauth.org/golang/internal/session"
)

// Milestones records session lifecycle events.
//
// Both roles mark a session started when they commit to it and completed when
// the payload check succeeds. Comparing the two sides shows every completed
// verification corresponds to exactly one started session. A nil *Milestones
// discards all events, states carry one without caring whether anybody
// listens.
type Milestones struct {
	mut       sync.Mutex
	started   map[session.Tag]int
	completed map[session.Tag]int
}

// NewMilestones returns an empty event recorder.
func NewMilestones() *Milestones {
	return &Milestones{
		started:   make(map[session.Tag]int),
		completed: make(map[session.Tag]int),
	}
}

// Start marks the session identified by tag as started.
func (self *Milestones) Start(tag session.Tag) {
	if nil == self {
		return
	}
	self.mut.Lock()
	defer self.mut.Unlock()

	self.started[tag] += 1
}

// Complete marks the session identified by tag as completed.
func (self *Milestones) Complete(tag session.Tag) {
	if nil == self {
		return
	}
	self.mut.Lock()
	defer self.mut.Unlock()

	self.completed[tag] += 1
}

// Started returns how many times the session identified by tag was started.
func (self *Milestones) Started(tag session.Tag) int {
	if nil == self {
		return 0
	}
	self.mut.Lock()
	defer self.mut.Unlock()

	return self.started[tag]
}

// Completed returns how many times the session identified by tag was completed.
func (self *Milestones) Completed(tag session.Tag) int {
	if nil == self {
		return 0
	}
	self.mut.Lock()
	defer self.mut.Unlock()

	return self.completed[tag]
}

// Counts returns the total number of started and completed sessions.
func (self *Milestones) Counts() (started, completed int) {
	if nil == self {
		return 0, 0
	}
	self.mut.Lock()
	defer self.mut.Unlock()

	for _, n := range self.started {
		started += n
	}
	for _, n := range self.completed {
		completed += n
	}

	return started, completed
}
