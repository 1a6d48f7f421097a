package model_test

import (
	"errors"
	"testing"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// ── Enums ──────────────────────────────────────────────────────────────────

func TestOfferTypeIDs(t *testing.T) {
	want := map[model.OfferType]int{
		model.OfferTypeSharedRoom: 0,
		model.OfferTypeOneRoom:    1,
		model.OfferTypeMultiRoom:  2,
		model.OfferTypeHouse:      3,
	}
	for typ, id := range want {
		if typ.ID() != id {
			t.Errorf("%s.ID() = %d, want %d", typ, typ.ID(), id)
		}
		back, err := model.OfferTypeByID(id)
		if err != nil || back != typ {
			t.Errorf("OfferTypeByID(%d) = %q, %v", id, back, err)
		}
	}
	if len(model.OfferTypes()) != len(want) {
		t.Errorf("OfferTypes() has %d entries, want %d", len(model.OfferTypes()), len(want))
	}
	if model.OfferType("castle").Valid() {
		t.Error("unknown offer type reported valid")
	}
	if _, err := model.OfferTypeByID(9); err == nil {
		t.Error("OfferTypeByID(9) expected error")
	}
}

func TestParseOfferTypeAndTravelMode(t *testing.T) {
	if _, err := model.ParseOfferType("multi-room"); err != nil {
		t.Errorf("ParseOfferType(multi-room): %v", err)
	}
	if _, err := model.ParseOfferType("Multi-Room"); err == nil {
		t.Error("ParseOfferType is case sensitive")
	}
	for _, s := range []string{"walk", "bike", "drive", "transit"} {
		if _, err := model.ParseTravelMode(s); err != nil {
			t.Errorf("ParseTravelMode(%q): %v", s, err)
		}
	}
	if _, err := model.ParseTravelMode("teleport"); err == nil {
		t.Error("ParseTravelMode(teleport) expected error")
	}
}

// ── Finder bookkeeping ─────────────────────────────────────────────────────

func TestFinder_MatchedIsSubsetOfParsed(t *testing.T) {
	f := &model.Finder{}
	f.MarkMatched("1")
	f.MarkParsed("2")
	f.MarkParsed("2")
	f.MarkMatched("1")

	if len(f.ParsedOffers) != 2 || len(f.Offers) != 1 {
		t.Fatalf("parsed=%v offers=%v", f.ParsedOffers, f.Offers)
	}
	for _, id := range f.Offers {
		if !f.HasParsed(id) {
			t.Errorf("matched %s not parsed", id)
		}
	}
}

func TestFinder_LookupFailuresClearedOnParse(t *testing.T) {
	f := &model.Finder{}
	if n := f.RecordLookupFailure("x"); n != 1 {
		t.Errorf("first failure = %d", n)
	}
	if n := f.RecordLookupFailure("x"); n != 2 {
		t.Errorf("second failure = %d", n)
	}
	f.MarkParsed("x")
	if _, ok := f.LookupFailures["x"]; ok {
		t.Error("failure count kept after MarkParsed")
	}
}

func TestFinder_CompletenessAndDuration(t *testing.T) {
	f := &model.Finder{Duration: model.IncompleteDuration}
	if f.IsComplete() {
		t.Error("finder with duration -1 reported complete")
	}
	f.Duration = 1800
	if !f.IsComplete() || f.MaxTravelTime().Seconds() != 1800 {
		t.Errorf("complete=%v max=%v", f.IsComplete(), f.MaxTravelTime())
	}
}

func TestUser_Origin(t *testing.T) {
	u := &model.User{Preferences: model.Preferences{Address: "Marienplatz 1, München"}}
	if got := u.Origin(); got != "Marienplatz 1, München" {
		t.Errorf("Origin() = %q", got)
	}
	u.Preferences.AddressID = "ChIJ123"
	if got := u.Origin(); got != "place_id:ChIJ123" {
		t.Errorf("Origin() = %q", got)
	}
}

// ── Validation ─────────────────────────────────────────────────────────────

func validOffer() *model.Offer {
	o := model.NewOffer("10622405")
	o.Link = "https://www.wg-gesucht.de/10622405.html"
	o.Address = "Leopoldstraße 1 80802 München"
	o.SetOfferType(model.OfferTypeOneRoom)
	o.City = "München"
	o.CityID = 90
	return o
}

func TestValidateOffer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Offer)
		ok     bool
	}{
		{"valid", func(*model.Offer) {}, true},
		{"missing data id", func(o *model.Offer) { o.DataID = "" }, false},
		{"missing link", func(o *model.Offer) { o.Link = "" }, false},
		{"missing address", func(o *model.Offer) { o.Address = "" }, false},
		{"nil costs", func(o *model.Offer) { o.Costs = nil }, false},
		{"nil description", func(o *model.Offer) { o.Description = nil }, false},
		{"unknown type", func(o *model.Offer) { o.OfferType = "castle" }, false},
		{"id mismatch", func(o *model.Offer) { o.OfferTypeID = 3 }, false},
		{"missing city", func(o *model.Offer) { o.CityID = 0 }, false},
	}
	for _, tc := range tests {
		o := validOffer()
		tc.mutate(o)
		err := model.ValidateOffer(o)
		if (err == nil) != tc.ok {
			t.Errorf("%s: ValidateOffer = %v, want ok=%v", tc.name, err, tc.ok)
		}
		var verr *model.ValidationError
		if err != nil && !errors.As(err, &verr) {
			t.Errorf("%s: error %T is not a *ValidationError", tc.name, err)
		}
	}
}

func TestValidateFinderAndUser(t *testing.T) {
	f := &model.Finder{FinderID: "f1", UserID: 1, Type: model.TravelModeWalk, Duration: model.IncompleteDuration, OfferTypeID: -1}
	if err := model.ValidateFinder(f); err != nil {
		t.Errorf("incomplete finder rejected: %v", err)
	}
	f.Duration = 0
	if err := model.ValidateFinder(f); err == nil {
		t.Error("zero duration accepted")
	}
	f.Duration = 600
	f.Type = "teleport"
	if err := model.ValidateFinder(f); err == nil {
		t.Error("unknown travel mode accepted")
	}

	if err := model.ValidateUser(&model.User{ChatID: 1, Language: "de"}); err != nil {
		t.Errorf("valid user rejected: %v", err)
	}
	if err := model.ValidateUser(&model.User{ChatID: 1}); err == nil {
		t.Error("user without language accepted")
	}
	if err := model.ValidateUser(nil); err == nil {
		t.Error("nil user accepted")
	}
}
