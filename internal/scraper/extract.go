package scraper

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/page"
)

var (
	qOfferItem    = page.Query{Class: "offer_list_item"}
	qSummaryTitle = page.Query{Class: "truncate_title noprint"}
	qLink         = page.Query{Tag: "a"}
	qNextPage     = page.Query{Tag: "a", Class: "page-link next"}
	qSearchButton = page.Query{Tag: "input", ID: "search_button"}

	qMainColumn  = page.Query{Tag: "div", ID: "main_column"}
	qRow         = page.Query{Tag: "div", Class: "row"}
	qIDLabel     = page.Query{Tag: "div", Class: "col-xs-12 col-md-6"}
	qTitle       = page.Query{Tag: "h1"}
	qImage       = page.Query{Tag: "img", Class: "sp-image"}
	qFooter      = page.Query{Tag: "div", Class: "section_footer_dark"}
	qArea        = page.Query{Tag: "b", Text: "m²"}
	qTotalRent   = page.Query{Tag: "b", Text: "€"}
	qPanelValue  = page.Query{Tag: "span", Class: "section_panel_value"}
	qPanelDetail = page.Query{Tag: "span", Class: "section_panel_detail"}
	qAltDetail   = page.Query{Tag: "span", Class: "noprint section_panel_detail"}
	qAltValue    = page.Query{Tag: "b", Class: "noprint"}
	qObjectInfo  = page.Query{Tag: "div", Class: "text-center"}
	qFreeText    = page.Query{Tag: "div", IDPrefix: "freitext_"}
)

// summary is one entry of a search results page.
type summary struct {
	DataID string
	Href   string
}

// listingSummaries reads the result entries of a search page. The data-id
// attribute of the entry container is used when present, so duplicates can
// be recognised without opening the detail page.
func listingSummaries(root page.Node) []summary {
	var out []summary
	for _, item := range root.Find(qOfferItem) {
		id, _ := item.Attr("data-id")
		title, ok := item.First(qSummaryTitle)
		if !ok {
			continue
		}
		if a, ok := title.First(qLink); ok {
			if href, ok := a.Attr("href"); ok && href != "" {
				out = append(out, summary{DataID: strings.TrimSpace(id), Href: href})
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, title := range root.Find(qSummaryTitle) {
		if a, ok := title.First(qLink); ok {
			if href, ok := a.Attr("href"); ok && href != "" {
				out = append(out, summary{Href: href})
			}
		}
	}
	return out
}

// parseIDLabel extracts the listing id from a label such as
// "Anzeigen-ID: 10622405": the second whitespace-separated token.
func parseIDLabel(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", fmt.Errorf("id label %q has no id token", text)
	}
	return fields[1], nil
}

// detailDataID reads the listing id from the detail page label.
func detailDataID(root page.Node) (string, error) {
	label, ok := root.First(qIDLabel)
	if !ok {
		return "", markupError("id", "id label not found", "")
	}
	id, err := parseIDLabel(label.Text())
	if err != nil {
		return "", markupError("id", err.Error(), label.HTML())
	}
	return id, nil
}

// costKeys is the on-page order of the cost rows.
var costKeys = [...]string{"rent", "additional_costs", "other_costs", "deposit", "transfer_agreement"}

// mapCostRows assigns the values of the cost panel to the cost fields by
// position. Rows beyond the fifth are ignored; missing rows stay empty.
func mapCostRows(values []string) *model.Costs {
	c := &model.Costs{}
	fields := map[string]*string{
		"rent":               &c.Rent,
		"additional_costs":   &c.AdditionalCosts,
		"other_costs":        &c.OtherCosts,
		"deposit":            &c.Deposit,
		"transfer_agreement": &c.TransferAgreement,
	}
	for i, v := range values {
		if i == len(costKeys) {
			break
		}
		*fields[costKeys[i]] = v
	}
	return c
}

// nextRow returns the n-th following sibling of row.
func nextRow(row page.Node, n int, section string) (page.Node, error) {
	cur := row
	for i := 0; i < n; i++ {
		next, ok := cur.Next()
		if !ok {
			return nil, markupError(section, "row not found", cur.HTML())
		}
		cur = next
	}
	return cur, nil
}

// innerRows returns the rows nested in the first inner row of outer.
func innerRows(outer page.Node, section string) ([]page.Node, error) {
	inner, ok := outer.First(qRow)
	if !ok {
		return nil, markupError(section, "inner row not found", outer.HTML())
	}
	return inner.Find(qRow), nil
}

// extractDetail fills o from a listing detail page. The main column is a
// sequence of rows: title and headline figures, costs, address and
// availability, a spacer, object details, a spacer, description.
func extractDetail(root page.Node, o *model.Offer, logger *slog.Logger) error {
	main, ok := root.First(qMainColumn)
	if !ok {
		return markupError("main", "main column not found", "")
	}
	head, ok := main.First(qRow)
	if !ok {
		return markupError("main", "first row not found", main.HTML())
	}
	if err := extractHeadline(head, o); err != nil {
		return err
	}

	costsRow, err := nextRow(head, 1, "costs")
	if err != nil {
		return err
	}
	rows, err := innerRows(costsRow, "costs")
	if err != nil {
		return err
	}
	values := make([]string, 0, len(costKeys))
	for _, r := range rows {
		if len(values) == len(costKeys) {
			break
		}
		v, ok := r.First(qPanelValue)
		if !ok {
			return markupError("costs", "cost value not found", r.HTML())
		}
		values = append(values, v.Text())
	}
	o.Costs = mapCostRows(values)

	addressRow, err := nextRow(costsRow, 1, "address")
	if err != nil {
		return err
	}
	if err := extractAddress(addressRow, o, logger); err != nil {
		return err
	}

	detailsRow, err := nextRow(addressRow, 2, "object_details")
	if err != nil {
		return err
	}
	inner, ok := detailsRow.First(qRow)
	if !ok {
		return markupError("object_details", "inner row not found", detailsRow.HTML())
	}
	for _, d := range inner.Find(qObjectInfo) {
		if t := d.Text(); t != "" {
			o.ObjectDetails = append(o.ObjectDetails, t)
		}
	}

	descRow, err := nextRow(detailsRow, 2, "description")
	if err != nil {
		return err
	}
	inner, ok = descRow.First(qRow)
	if !ok {
		return markupError("description", "inner row not found", descRow.HTML())
	}
	for _, d := range inner.Find(qFreeText) {
		o.Description = append(o.Description, d.Text())
	}
	return nil
}

func extractHeadline(head page.Node, o *model.Offer) error {
	title, ok := head.First(qTitle)
	if !ok {
		return markupError("headline", "title not found", head.HTML())
	}
	o.Name = title.Text()

	for _, img := range head.Find(qImage) {
		if src, ok := img.Attr("data-default"); ok && src != "" {
			o.Images = append(o.Images, src)
		}
	}

	footer, ok := head.First(qFooter)
	if !ok {
		return markupError("headline", "key facts not found", head.HTML())
	}
	area, ok := footer.First(qArea)
	if !ok {
		return markupError("headline", "area not found", footer.HTML())
	}
	rent, ok := footer.First(qTotalRent)
	if !ok {
		return markupError("headline", "total rent not found", footer.HTML())
	}
	o.Area = area.Text()
	o.TotalRent = rent.Text()
	return nil
}

// extractAddress reads the address from the first inner row and the
// availability pairs from the rest. Availability rows come in two layouts;
// a row matching neither is logged and skipped.
func extractAddress(row page.Node, o *model.Offer, logger *slog.Logger) error {
	rows, err := innerRows(row, "address")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return markupError("address", "no address row", row.HTML())
	}
	addr, ok := rows[0].First(qPanelDetail)
	if !ok {
		return markupError("address", "address not found", rows[0].HTML())
	}
	o.Address = addr.Text()

	for _, r := range rows[1:] {
		if name, ok := r.First(qPanelDetail); ok {
			if value, ok := r.First(qPanelValue); ok {
				o.Availability[name.Text()] = value.Text()
				continue
			}
		}
		if name, ok := r.First(qAltDetail); ok {
			if value, ok := r.First(qAltValue); ok {
				o.Availability[name.Text()] = value.Text()
				continue
			}
		}
		logger.Warn("availability row not recognised, continuing", "data_id", o.DataID, "html", r.HTML())
	}
	return nil
}
