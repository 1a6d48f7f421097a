package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record is missing or, for lookups that only
// consider active records, inactive.
var ErrNotFound = errors.New("record not found")

// ValidationError reports a record whose shape is not acceptable for
// storage. Nothing is written when it is returned.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ValidateOffer checks the fields every stored offer must carry.
func ValidateOffer(o *Offer) error {
	if o == nil {
		return invalid("offer is nil")
	}
	switch {
	case o.DataID == "":
		return invalid("offer: missing field data_id")
	case o.Link == "":
		return invalid("offer %s: missing field link", o.DataID)
	case o.Address == "":
		return invalid("offer %s: missing field address", o.DataID)
	case o.Costs == nil:
		return invalid("offer %s: missing field costs", o.DataID)
	case o.Availability == nil:
		return invalid("offer %s: missing field availability", o.DataID)
	case o.ObjectDetails == nil:
		return invalid("offer %s: missing field object_details", o.DataID)
	case o.Description == nil:
		return invalid("offer %s: missing field description", o.DataID)
	}
	return ValidateOfferClassification(o)
}

// ValidateOfferClassification checks the housing type and city fields. Older
// records written before classification existed fail this check.
func ValidateOfferClassification(o *Offer) error {
	if !o.OfferType.Valid() {
		return invalid("offer %s: unknown offer_type %q", o.DataID, o.OfferType)
	}
	if o.OfferTypeID != o.OfferType.ID() {
		return invalid("offer %s: offer_type_id %d does not match offer_type %q", o.DataID, o.OfferTypeID, o.OfferType)
	}
	if o.City == "" || o.CityID == 0 {
		return invalid("offer %s: missing field city", o.DataID)
	}
	return nil
}

// ValidateFinder checks a finder before it is stored. Incomplete finders
// (duration -1) are valid; they just never match.
func ValidateFinder(f *Finder) error {
	if f == nil {
		return invalid("finder is nil")
	}
	switch {
	case f.FinderID == "":
		return invalid("finder: missing field finder_id")
	case f.UserID == 0:
		return invalid("finder %s: missing field user_id", f.FinderID)
	case !f.Type.Valid():
		return invalid("finder %s: unknown travel mode %q", f.FinderID, f.Type)
	case f.Duration != IncompleteDuration && f.Duration <= 0:
		return invalid("finder %s: duration must be positive or %d, got %d", f.FinderID, IncompleteDuration, f.Duration)
	case f.OfferType != "" && f.OfferTypeID != f.OfferType.ID():
		return invalid("finder %s: offer_type_id %d does not match offer_type %q", f.FinderID, f.OfferTypeID, f.OfferType)
	}
	return nil
}

// ValidateUser checks a user before it is stored.
func ValidateUser(u *User) error {
	if u == nil {
		return invalid("user is nil")
	}
	if u.ChatID == 0 {
		return invalid("user: missing field chat_id")
	}
	if u.Language == "" {
		return invalid("user %d: missing field language", u.ChatID)
	}
	return nil
}
