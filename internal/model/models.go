// Package model defines the records shared by the parser, the stores and the
// matching engine.
package model

import "time"

// IncompleteDuration marks a finder whose saved-search flow was never
// finished. Such finders are never matched.
const IncompleteDuration = -1

// Costs holds the itemized cost rows of a listing, as displayed on the site.
type Costs struct {
	Rent              string `json:"rent" bson:"rent"`
	AdditionalCosts   string `json:"additional_costs" bson:"additional_costs"`
	OtherCosts        string `json:"other_costs" bson:"other_costs"`
	Deposit           string `json:"deposit" bson:"deposit"`
	TransferAgreement string `json:"transfer_agreement" bson:"transfer_agreement"`
}

// Offer is one scraped rental listing. DataID is the site's stable id and
// the record's unique key.
type Offer struct {
	DataID        string            `json:"data_id" bson:"data_id"`
	Link          string            `json:"link" bson:"link"`
	Name          string            `json:"name" bson:"name"`
	Area          string            `json:"area" bson:"area"`
	Address       string            `json:"address" bson:"address"`
	TotalRent     string            `json:"total_rent" bson:"total_rent"`
	Costs         *Costs            `json:"costs" bson:"costs"`
	Availability  map[string]string `json:"availability" bson:"availability"`
	ObjectDetails []string          `json:"object_details" bson:"object_details"`
	Description   []string          `json:"description" bson:"description"`
	Images        []string          `json:"images" bson:"images"`
	OfferType     OfferType         `json:"offer_type" bson:"offer_type"`
	OfferTypeID   int               `json:"offer_type_id" bson:"offer_type_id"`
	City          string            `json:"city" bson:"city"`
	CityID        int               `json:"city_id" bson:"city_id"`
	IsActive      bool              `json:"is_active" bson:"is_active"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
}

// NewOffer returns an offer with every collection field initialised, so a
// partially extracted offer still has the shape the store expects.
func NewOffer(dataID string) *Offer {
	return &Offer{
		DataID:        dataID,
		Costs:         &Costs{},
		Availability:  map[string]string{},
		ObjectDetails: []string{},
		Description:   []string{},
		Images:        []string{},
		IsActive:      true,
	}
}

// SetOfferType sets both the enum and its stable integer id.
func (o *Offer) SetOfferType(t OfferType) {
	o.OfferType = t
	o.OfferTypeID = t.ID()
}

// Finder is a user's saved search: a travel mode, a housing filter and the
// longest acceptable travel time.
//
// Offers holds the matched offer ids; ParsedOffers every id ever evaluated
// for this finder, matched or not. Offers is always a subset of ParsedOffers
// and ParsedOffers only grows.
type Finder struct {
	FinderID       string         `json:"finder_id" bson:"finder_id"`
	UserID         int64          `json:"user_id" bson:"user_id"`
	Type           TravelMode     `json:"type" bson:"type"`
	OfferType      OfferType      `json:"offer_type" bson:"offer_type"`
	OfferTypeID    int            `json:"offer_type_id" bson:"offer_type_id"`
	Duration       int            `json:"duration" bson:"duration"` // seconds, -1 until configured
	Offers         []string       `json:"offers" bson:"offers"`
	ParsedOffers   []string       `json:"parsed_offers" bson:"parsed_offers"`
	LookupFailures map[string]int `json:"lookup_failures" bson:"lookup_failures"`
	IsActive       bool           `json:"is_active" bson:"is_active"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	LastAccessAt   time.Time      `json:"last_access_at" bson:"last_access_at"`
}

// SetOfferType sets both the housing filter and its stable integer id.
func (f *Finder) SetOfferType(t OfferType) {
	f.OfferType = t
	f.OfferTypeID = t.ID()
}

// IsComplete reports whether the finder has been fully configured.
func (f *Finder) IsComplete() bool { return f.Duration != IncompleteDuration }

// MaxTravelTime returns Duration as a time.Duration.
func (f *Finder) MaxTravelTime() time.Duration {
	return time.Duration(f.Duration) * time.Second
}

// HasParsed reports whether dataID was already evaluated for this finder.
func (f *Finder) HasParsed(dataID string) bool { return contains(f.ParsedOffers, dataID) }

// HasMatched reports whether dataID is one of the finder's matches.
func (f *Finder) HasMatched(dataID string) bool { return contains(f.Offers, dataID) }

// MarkParsed appends dataID to ParsedOffers unless already present.
func (f *Finder) MarkParsed(dataID string) {
	if !f.HasParsed(dataID) {
		f.ParsedOffers = append(f.ParsedOffers, dataID)
	}
	delete(f.LookupFailures, dataID)
}

// MarkMatched records dataID as a match. It is also marked parsed so the
// subset invariant holds whatever order callers use.
func (f *Finder) MarkMatched(dataID string) {
	f.MarkParsed(dataID)
	if !f.HasMatched(dataID) {
		f.Offers = append(f.Offers, dataID)
	}
}

// RecordLookupFailure increments and returns the failure count for dataID.
func (f *Finder) RecordLookupFailure(dataID string) int {
	if f.LookupFailures == nil {
		f.LookupFailures = map[string]int{}
	}
	f.LookupFailures[dataID]++
	return f.LookupFailures[dataID]
}

// Preferences are the per-user settings used for matching and delivery.
type Preferences struct {
	Address       string `json:"address" bson:"address"`
	AddressID     string `json:"address_id" bson:"address_id"`
	Notifications bool   `json:"notifications" bson:"notifications"`
}

// User is a chat subscriber. A user owns zero or more finders.
type User struct {
	ChatID      int64       `json:"chat_id" bson:"chat_id"`
	IsActive    bool        `json:"is_active" bson:"is_active"`
	Preferences Preferences `json:"preferences" bson:"preferences"`
	Language    string      `json:"language" bson:"language"`
}

// Origin returns the value used as travel origin: the provider place id when
// the address was validated, the raw address otherwise.
func (u *User) Origin() string {
	if u.Preferences.AddressID != "" {
		return "place_id:" + u.Preferences.AddressID
	}
	return u.Preferences.Address
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
