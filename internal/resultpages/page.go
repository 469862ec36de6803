package resultpages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"kiesraad/internal/table"
)

// Unit selects which number of a party block is reported.
type Unit string

const (
	Votes Unit = "votes"
	Seats Unit = "seats"
)

var (
	ErrInvalidUnit     = errors.New("resultpages: unit must be votes or seats")
	ErrNoMunicipality  = errors.New("resultpages: page has no h3 heading")
	ErrGeneralResults  = errors.New("resultpages: general results block malformed")
	ErrPartyBlockValue = errors.New("resultpages: party block has no value")
)

// ParseUnit validates s.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(s); u {
	case Votes, Seats:
		return u, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// Leading columns of every page row, in order.
const (
	ColElection     = "Verkiezing"
	ColProvince     = "Provincie"
	ColMunicipality = "Gemeente"
	ColElectorate   = "Kiesgerechtigden"
	ColTurnout      = "Opkomst"
	ColBlank        = "Blanco"
	ColInvalid      = "Ongeldig"
)

// LeadingColumns is the column order ParseDir puts first.
var LeadingColumns = []string{ColElection, ColProvince, ColMunicipality, ColElectorate, ColTurnout, ColBlank, ColInvalid}

var generalColumns = []string{ColElectorate, ColTurnout, ColBlank, ColInvalid}

// StringToInt parses a number as printed on the result pages: '.' is the
// thousands separator and anything from '(' on is a remark.
func StringToInt(s string) (int64, error) {
	s = strings.ReplaceAll(s, ".", "")
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// ParsePage extracts one row from a municipality result page.
//
// The municipality is the text of the last h3. The four general results come
// from the span.value elements of ul#algemeneUitslagen. Each h4.partij-naam
// adds a party column taken from its nearest enclosing div: the first
// span.value for Votes, the last one for Seats (0 when the block has at most
// one value).
func ParsePage(html, election, province string, unit Unit) (*table.Record, error) {
	if _, err := ParseUnit(string(unit)); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	rec := table.NewRecord(len(LeadingColumns) + 16)
	rec.Set(ColElection, election).Set(ColProvince, province)

	h3 := doc.Find("h3")
	if h3.Length() == 0 {
		return nil, ErrNoMunicipality
	}
	rec.Set(ColMunicipality, strings.TrimSpace(h3.Last().Text()))

	general := doc.Find("ul#algemeneUitslagen span.value")
	if general.Length() != len(generalColumns) {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrGeneralResults, general.Length(), len(generalColumns))
	}
	var perr error
	general.EachWithBreak(func(i int, s *goquery.Selection) bool {
		n, err := StringToInt(s.Text())
		if err != nil {
			perr = fmt.Errorf("%s: %w", generalColumns[i], err)
			return false
		}
		rec.Set(generalColumns[i], n)
		return true
	})
	if perr != nil {
		return nil, perr
	}

	doc.Find("h4.partij-naam").EachWithBreak(func(_ int, h4 *goquery.Selection) bool {
		block := h4.Closest("div")
		if block.Length() == 0 {
			return true
		}
		party := strings.TrimSpace(h4.Text())
		values := block.Find("span.value")

		raw := "0"
		switch {
		case unit == Votes && values.Length() > 0:
			raw = values.First().Text()
		case unit == Votes:
			perr = fmt.Errorf("%w: %s", ErrPartyBlockValue, party)
			return false
		case values.Length() > 1:
			raw = values.Last().Text()
		}

		n, err := StringToInt(raw)
		if err != nil {
			perr = fmt.Errorf("party %s: %w", party, err)
			return false
		}
		rec.Set(party, n)
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return rec, nil
}
