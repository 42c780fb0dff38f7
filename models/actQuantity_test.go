package models_test

import (
	"math/rand"
	"testing"

	"github.com/mediflow/cabinet_backend/models"
)

func TestCollapseActOccurrences_Counts(t *testing.T) {
	occurrences := []models.ActOccurrence{
		{ActId: 7}, {ActId: 3}, {ActId: 7}, {ActId: 7}, {ActId: 3},
	}

	counts := models.CollapseActOccurrences(occurrences)
	if len(counts) != 2 {
		t.Fatalf("expected 2 distinct acts; got %d", len(counts))
	}
	if counts[7] != 3 || counts[3] != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestCollapseActOccurrences_OrderIndependent(t *testing.T) {
	base := []models.ActOccurrence{
		{ActId: 1}, {ActId: 2}, {ActId: 2}, {ActId: 5}, {ActId: 1}, {ActId: 1},
	}
	want := models.CollapseActOccurrences(base)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]models.ActOccurrence, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := models.CollapseActOccurrences(shuffled)
		if len(got) != len(want) {
			t.Fatalf("permutation %d changed distinct count", i)
		}
		for actId, count := range want {
			if got[actId] != count {
				t.Fatalf("permutation %d: act %d count %d, want %d", i, actId, got[actId], count)
			}
		}
	}
}

func TestExpandActLinks_QuantityCopiesSorted(t *testing.T) {
	catalog := map[int]*models.CatalogAct{
		4: {ID: 4, Code: "AMI"},
		9: {ID: 9, Code: "AIS"},
	}
	links := []models.DocumentActLink{
		{DocumentId: 1, ActId: 9, Quantity: 1},
		{DocumentId: 1, ActId: 4, Quantity: 3},
	}

	occurrences := models.ExpandActLinks(links, catalog)
	if len(occurrences) != 4 {
		t.Fatalf("expected 4 occurrences; got %d", len(occurrences))
	}
	for i := 0; i < 3; i++ {
		if occurrences[i].ActId != 4 {
			t.Fatalf("occurrence %d: expected act 4 first (sorted); got %d", i, occurrences[i].ActId)
		}
	}
	if occurrences[3].ActId != 9 || occurrences[3].Code != "AIS" {
		t.Fatalf("last occurrence should be act 9/AIS; got %+v", occurrences[3])
	}
}

func TestExpandActLinks_SkipsMissingCatalogRows(t *testing.T) {
	catalog := map[int]*models.CatalogAct{4: {ID: 4, Code: "AMI"}}
	links := []models.DocumentActLink{
		{DocumentId: 1, ActId: 4, Quantity: 1},
		{DocumentId: 1, ActId: 99, Quantity: 2},
	}

	occurrences := models.ExpandActLinks(links, catalog)
	if len(occurrences) != 1 {
		t.Fatalf("expected only resolvable occurrences; got %d", len(occurrences))
	}
}

func TestCollapseExpandRoundTrip(t *testing.T) {
	catalog := map[int]*models.CatalogAct{
		1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3},
	}
	links := []models.DocumentActLink{
		{DocumentId: 1, ActId: 2, Quantity: 2},
		{DocumentId: 1, ActId: 1, Quantity: 1},
		{DocumentId: 1, ActId: 3, Quantity: 5},
	}

	counts := models.CollapseActOccurrences(models.ExpandActLinks(links, catalog))
	for _, link := range links {
		if counts[link.ActId] != link.Quantity {
			t.Fatalf("act %d: round trip quantity %d, want %d", link.ActId, counts[link.ActId], link.Quantity)
		}
	}
}

func TestOccurrencesFromInputs_ZeroQuantityDropped(t *testing.T) {
	occurrences := models.OccurrencesFromInputs([]models.DocumentActInput{
		{ActId: 1, Quantity: 2},
		{ActId: 2, Quantity: 0},
	})
	if len(occurrences) != 2 {
		t.Fatalf("expected 2 occurrences; got %d", len(occurrences))
	}
	for _, occ := range occurrences {
		if occ.ActId == 2 {
			t.Fatal("zero-quantity act must not expand")
		}
	}
}
