// Package scraper turns the site's paginated search results and listing
// detail pages into stored offers.
//
// A run walks a small session state machine:
//
//	init ──► searching ──► page ──► done
//	  │          │          │ ▲
//	  │          │          └─┘ (next page)
//	  └──────────┴──────────┴──► failed
//
// done and failed are terminal.
package scraper

import "fmt"

// SessionState is the stage a parser run has reached.
type SessionState string

const (
	StateInit      SessionState = "init"
	StateSearching SessionState = "searching"
	StatePage      SessionState = "page"
	StateDone      SessionState = "done"
	StateFailed    SessionState = "failed"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[SessionState][]SessionState{
	StateInit:      {StateSearching, StateFailed},
	StateSearching: {StatePage, StateFailed},
	StatePage:      {StatePage, StateDone, StateFailed},
}

// IsTransitionAllowed reports whether a run may move from → to.
func IsTransitionAllowed(from, to SessionState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type session struct {
	state SessionState
}

func (s *session) advance(to SessionState) error {
	if !IsTransitionAllowed(s.state, to) {
		return fmt.Errorf("session: transition %s -> %s not allowed", s.state, to)
	}
	s.state = to
	return nil
}
