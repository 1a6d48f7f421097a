package scraper_test

import (
	"testing"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/scraper"
)

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_Forward(t *testing.T) {
	cases := []struct{ from, to scraper.SessionState }{
		{scraper.StateInit, scraper.StateSearching},
		{scraper.StateSearching, scraper.StatePage},
		{scraper.StatePage, scraper.StatePage},
		{scraper.StatePage, scraper.StateDone},
	}
	for _, c := range cases {
		if !scraper.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_FailureFromAnyActiveState(t *testing.T) {
	for _, s := range []scraper.SessionState{scraper.StateInit, scraper.StateSearching, scraper.StatePage} {
		if !scraper.IsTransitionAllowed(s, scraper.StateFailed) {
			t.Errorf("IsTransitionAllowed(%s → failed) should be true", s)
		}
	}
}

func TestIsTransitionAllowed_Rejected(t *testing.T) {
	cases := []struct{ from, to scraper.SessionState }{
		{scraper.StateInit, scraper.StatePage},
		{scraper.StateInit, scraper.StateDone},
		{scraper.StateSearching, scraper.StateDone},
		{scraper.StatePage, scraper.StateSearching},
		{scraper.StateDone, scraper.StatePage},
		{scraper.StateFailed, scraper.StateInit},
		{scraper.StateDone, scraper.StateFailed},
		{scraper.StateFailed, scraper.StateDone},
	}
	for _, c := range cases {
		if scraper.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false", c.from, c.to)
		}
	}
}
