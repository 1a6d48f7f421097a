// Package notify delivers newly matched offers to users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// Notifier delivers one matched offer to one user.
type Notifier interface {
	OfferMatched(ctx context.Context, u *model.User, o *model.Offer) error
}

// Multi fans out to every notifier in order. All notifiers are tried; the
// joined errors are returned.
type Multi []Notifier

func (m Multi) OfferMatched(ctx context.Context, u *model.User, o *model.Offer) error {
	var errs []error
	for _, n := range m {
		if err := n.OfferMatched(ctx, u, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Message renders the text sent for a matched offer.
func Message(o *model.Offer) string {
	var b strings.Builder
	name := o.Name
	if name == "" {
		name = "New offer"
	}
	b.WriteString(name)
	b.WriteByte('\n')
	if o.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", o.Address)
	}
	if o.TotalRent != "" {
		fmt.Fprintf(&b, "Total rent: %s\n", o.TotalRent)
	}
	if o.Area != "" {
		fmt.Fprintf(&b, "Area: %s\n", o.Area)
	}
	b.WriteString(o.Link)
	return b.String()
}
