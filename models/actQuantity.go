package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ActOccurrence is one flat occurrence of a catalog act on a billing
// document, carrying the catalog attributes the totals engine prices
// with. Storage collapses repeated occurrences into quantities; pricing
// and rendering expand them back.
type ActOccurrence struct {
	ActId       int             `json:"act_id"`
	Family      ActFamily       `json:"family"`
	Code        string          `json:"code"`
	Label       string          `json:"label"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Coefficient decimal.Decimal `json:"coefficient"`
	Rate        decimal.Decimal `json:"rate"`

	// Computed per occurrence by the totals engine (orthopedic family).
	Total        decimal.Decimal `json:"total"`
	PatientShare decimal.Decimal `json:"patient_share"`
	InsurerShare decimal.Decimal `json:"insurer_share"`
}

// CollapseActOccurrences groups a flat occurrence list into
// (act id -> count). Grouping is by identity, so input order never
// changes the result.
func CollapseActOccurrences(occurrences []ActOccurrence) map[int]int {
	counts := make(map[int]int, len(occurrences))
	for _, occ := range occurrences {
		counts[occ.ActId]++
	}
	return counts
}

// ExpandActLinks turns stored (act, quantity) links back into the flat
// occurrence sequence, quantity copies per link, each carrying the
// referenced catalog attributes. Output is ordered by act id so the
// expansion is stable regardless of link-row order.
func ExpandActLinks(links []DocumentActLink, catalog map[int]*CatalogAct) []ActOccurrence {
	sorted := make([]DocumentActLink, len(links))
	copy(sorted, links)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ActId < sorted[j].ActId })

	var occurrences []ActOccurrence
	for _, link := range sorted {
		act, ok := catalog[link.ActId]
		if !ok {
			continue
		}
		for i := 0; i < link.Quantity; i++ {
			occurrences = append(occurrences, ActOccurrence{
				ActId:       act.ID,
				Family:      act.Family,
				Code:        act.Code,
				Label:       act.Label,
				UnitPrice:   act.UnitPrice,
				Coefficient: act.Coefficient,
				Rate:        act.Rate,
			})
		}
	}
	return occurrences
}

// DocumentActInput is the write-side act line of a billing document.
type DocumentActInput struct {
	ActId    int `json:"act_id"`
	Quantity int `json:"quantity"`
}

// OccurrencesFromInputs expands write-side act lines into flat
// occurrences. A zero quantity means the act is dropped from the
// document rather than stored as an empty link.
func OccurrencesFromInputs(inputs []DocumentActInput) []ActOccurrence {
	var occurrences []ActOccurrence
	for _, input := range inputs {
		for i := 0; i < input.Quantity; i++ {
			occurrences = append(occurrences, ActOccurrence{ActId: input.ActId})
		}
	}
	return occurrences
}
