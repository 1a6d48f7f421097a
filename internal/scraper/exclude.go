package scraper

import (
	"strings"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// excludedTerm returns the first exclusion term found (case-insensitive) in
// the offer's name, object details or description, or "" when none is.
func excludedTerm(o *model.Offer, terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	combined := strings.ToLower(o.Name + " " +
		strings.Join(o.ObjectDetails, " ") + " " +
		strings.Join(o.Description, " "))
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(term)) {
			return term
		}
	}
	return ""
}
