package scraper

import (
	"errors"
	"fmt"
)

// OutcomeKind classifies what happened to one listing.
type OutcomeKind int

const (
	OutcomeSaved OutcomeKind = iota
	OutcomeDuplicate
	OutcomeSkipped
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSaved:
		return "saved"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFatal:
		return "fatal"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of processing one listing. OutcomeFatal stops the
// run and its Err is returned from Parser.Run.
type Outcome struct {
	Kind   OutcomeKind
	DataID string
	Reason string
	Err    error
}

func saved(id string) Outcome     { return Outcome{Kind: OutcomeSaved, DataID: id} }
func duplicate(id string) Outcome { return Outcome{Kind: OutcomeDuplicate, DataID: id, Reason: "already stored"} }

func skipped(id, reason string, err error) Outcome {
	return Outcome{Kind: OutcomeSkipped, DataID: id, Reason: reason, Err: err}
}

func fatal(id, reason string, err error) Outcome {
	return Outcome{Kind: OutcomeFatal, DataID: id, Reason: reason, Err: err}
}

// RunStats summarises one parser run.
type RunStats struct {
	Pages      int
	Seen       int
	Saved      int
	Duplicates int
	Skipped    int
	Failed     int
}

func (s *RunStats) add(o Outcome) {
	s.Seen++
	switch o.Kind {
	case OutcomeSaved:
		s.Saved++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFatal:
		s.Failed++
	}
}

// MarkupError reports page structure that did not match expectations. It
// carries the HTML of the element being read when the mismatch was found.
type MarkupError struct {
	Section  string
	Msg      string
	Fragment string
}

func (e *MarkupError) Error() string {
	return fmt.Sprintf("markup %s: %s", e.Section, e.Msg)
}

func markupError(section, msg, fragment string) error {
	return &MarkupError{Section: section, Msg: msg, Fragment: fragment}
}

// fragmentOf returns the HTML fragment of a MarkupError in err's chain.
func fragmentOf(err error) string {
	var me *MarkupError
	if errors.As(err, &me) {
		return me.Fragment
	}
	return ""
}
