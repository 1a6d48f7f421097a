package model

import "fmt"

// OfferType is the housing category of a listing. The integer ids are the
// site's own category ids and are stored alongside the name.
type OfferType string

const (
	OfferTypeSharedRoom OfferType = "shared-room"
	OfferTypeOneRoom    OfferType = "one-room"
	OfferTypeMultiRoom  OfferType = "multi-room"
	OfferTypeHouse      OfferType = "house"
)

var offerTypeIDs = map[OfferType]int{
	OfferTypeSharedRoom: 0,
	OfferTypeOneRoom:    1,
	OfferTypeMultiRoom:  2,
	OfferTypeHouse:      3,
}

// OfferTypes lists every housing category in id order.
func OfferTypes() []OfferType {
	return []OfferType{OfferTypeSharedRoom, OfferTypeOneRoom, OfferTypeMultiRoom, OfferTypeHouse}
}

// ParseOfferType converts a raw string to an OfferType, returning an error
// for unknown values.
func ParseOfferType(s string) (OfferType, error) {
	t := OfferType(s)
	if _, ok := offerTypeIDs[t]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown offer type %q", s)
}

// OfferTypeByID returns the category with the given stable id.
func OfferTypeByID(id int) (OfferType, error) {
	for t, v := range offerTypeIDs {
		if v == id {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown offer type id %d", id)
}

// ID returns the stable integer id, or -1 for an unknown type.
func (t OfferType) ID() int {
	if id, ok := offerTypeIDs[t]; ok {
		return id
	}
	return -1
}

// Valid reports whether t is one of the known categories.
func (t OfferType) Valid() bool { return t.ID() >= 0 }

// TravelMode is the way a finder's owner commutes.
type TravelMode string

const (
	TravelModeWalk    TravelMode = "walk"
	TravelModeBike    TravelMode = "bike"
	TravelModeDrive   TravelMode = "drive"
	TravelModeTransit TravelMode = "transit"
)

// ParseTravelMode converts a raw string to a TravelMode.
func ParseTravelMode(s string) (TravelMode, error) {
	m := TravelMode(s)
	switch m {
	case TravelModeWalk, TravelModeBike, TravelModeDrive, TravelModeTransit:
		return m, nil
	}
	return "", fmt.Errorf("unknown travel mode %q", s)
}

// Valid reports whether m is one of the known travel modes.
func (m TravelMode) Valid() bool {
	_, err := ParseTravelMode(string(m))
	return err == nil
}
