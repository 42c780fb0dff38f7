package models_test

import (
	"testing"

	"github.com/mediflow/cabinet_backend/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func careOccurrence(code string, unitPrice, coefficient string) models.ActOccurrence {
	return models.ActOccurrence{
		ActId:       1,
		Family:      models.ActFamilyCare,
		Code:        code,
		UnitPrice:   dec(unitPrice),
		Coefficient: dec(coefficient),
	}
}

func plainOffice() *models.Office {
	return &models.Office{
		NightMultiplier:       dec("1"),
		SundayMultiplier:      dec("1"),
		EmergencyMultiplier:   dec("1"),
		TravelIndemnityAmount: decimal.Zero,
	}
}

func TestPriceCareOccurrences_NoModifiers(t *testing.T) {
	occurrences := []models.ActOccurrence{careOccurrence("AMP", "4830", "1")}

	priced, total := models.PriceCareOccurrences(occurrences, 0, plainOffice())

	if total.Cmp(dec("4830")) != 0 {
		t.Fatalf("expected total 4830; got %s", total.String())
	}
	if priced[0].Total.Cmp(dec("4830")) != 0 {
		t.Fatalf("expected occurrence total 4830; got %s", priced[0].Total.String())
	}
}

func TestPriceCareOccurrences_SundayRoundsHalfUp(t *testing.T) {
	office := plainOffice()
	office.SundayMultiplier = dec("1.25")
	occurrences := []models.ActOccurrence{careOccurrence("AMP", "4830", "1")}

	// 4830 x 1.25 = 6037.5, rounds away from zero.
	_, total := models.PriceCareOccurrences(occurrences, models.FlagSundayHoliday, office)
	if total.Cmp(dec("6038")) != 0 {
		t.Fatalf("expected total 6038; got %s", total.String())
	}
}

func TestPriceCareOccurrences_CoefficientAndQuantityExpansion(t *testing.T) {
	// Three occurrences of the same act behave as quantity 3.
	occ := careOccurrence("AMI", "315", "1.5")
	occurrences := []models.ActOccurrence{occ, occ, occ}

	_, total := models.PriceCareOccurrences(occurrences, 0, plainOffice())
	// 315 x 1.5 = 472.5 -> 473 per occurrence.
	if total.Cmp(dec("1419")) != 0 {
		t.Fatalf("expected total 1419; got %s", total.String())
	}
}

func TestPriceCareOccurrences_MultipliersStack(t *testing.T) {
	office := plainOffice()
	office.NightMultiplier = dec("1.5")
	office.EmergencyMultiplier = dec("1.2")
	occurrences := []models.ActOccurrence{careOccurrence("AMI", "1000", "1")}

	flags := models.FlagNight.With(models.FlagEmergency)
	_, total := models.PriceCareOccurrences(occurrences, flags, office)
	if total.Cmp(dec("1800")) != 0 {
		t.Fatalf("expected total 1800; got %s", total.String())
	}
}

func TestPriceCareOccurrences_TravelIndemnityFlat(t *testing.T) {
	office := plainOffice()
	office.TravelIndemnityAmount = dec("250")
	occurrences := []models.ActOccurrence{
		careOccurrence("AMI", "315", "1"),
		careOccurrence("AIS", "265", "1"),
	}

	_, total := models.PriceCareOccurrences(occurrences, models.FlagTravelIndemnity, office)
	if total.Cmp(dec("830")) != 0 {
		t.Fatalf("expected total 830; got %s", total.String())
	}

	// Without the flag the indemnity never applies.
	_, total = models.PriceCareOccurrences(occurrences, 0, office)
	if total.Cmp(dec("580")) != 0 {
		t.Fatalf("expected total 580; got %s", total.String())
	}
}

func TestPriceCareOccurrences_EmptyIsZero(t *testing.T) {
	_, total := models.PriceCareOccurrences(nil, 0, plainOffice())
	if !total.IsZero() {
		t.Fatalf("expected zero total; got %s", total.String())
	}
}

func TestPriceCareOccurrences_FlagWithoutConfiguredMultiplier(t *testing.T) {
	office := plainOffice()
	office.NightMultiplier = decimal.Zero
	occurrences := []models.ActOccurrence{careOccurrence("AMI", "315", "1")}

	_, total := models.PriceCareOccurrences(occurrences, models.FlagNight, office)
	if total.Cmp(dec("315")) != 0 {
		t.Fatalf("expected unmodified total 315; got %s", total.String())
	}
}

func TestPriceCareOccurrences_Idempotent(t *testing.T) {
	office := plainOffice()
	office.SundayMultiplier = dec("1.25")
	occurrences := []models.ActOccurrence{careOccurrence("AMP", "4830", "1")}

	priced, first := models.PriceCareOccurrences(occurrences, models.FlagSundayHoliday, office)
	_, second := models.PriceCareOccurrences(priced, models.FlagSundayHoliday, office)
	if first.Cmp(second) != 0 {
		t.Fatalf("recompute drifted: %s then %s", first.String(), second.String())
	}
}

func orthoOccurrence(code string, tariff, rate string) models.ActOccurrence {
	return models.ActOccurrence{
		ActId:       2,
		Family:      models.ActFamilyOrthopedic,
		Code:        code,
		UnitPrice:   dec(tariff),
		Coefficient: dec("1"),
		Rate:        dec(rate),
	}
}

func TestPriceOrthopedicOccurrences_FullCoverage(t *testing.T) {
	occurrences := []models.ActOccurrence{orthoOccurrence("SEMELLE", "12000", "100")}

	_, total, patientShare, insurerShare := models.PriceOrthopedicOccurrences(occurrences)
	if total.Cmp(dec("12000")) != 0 {
		t.Fatalf("expected total 12000; got %s", total.String())
	}
	if !patientShare.IsZero() {
		t.Fatalf("expected patient share 0; got %s", patientShare.String())
	}
	if insurerShare.Cmp(dec("12000")) != 0 {
		t.Fatalf("expected insurer share 12000; got %s", insurerShare.String())
	}
}

func TestPriceOrthopedicOccurrences_PartialCoverageSplit(t *testing.T) {
	occurrences := []models.ActOccurrence{orthoOccurrence("CHAUSSURE", "65000", "65")}

	priced, total, patientShare, insurerShare := models.PriceOrthopedicOccurrences(occurrences)
	if total.Cmp(dec("65000")) != 0 {
		t.Fatalf("expected total 65000; got %s", total.String())
	}
	if insurerShare.Cmp(dec("42250")) != 0 {
		t.Fatalf("expected insurer share 42250; got %s", insurerShare.String())
	}
	if patientShare.Cmp(dec("22750")) != 0 {
		t.Fatalf("expected patient share 22750; got %s", patientShare.String())
	}
	if priced[0].PatientShare.Add(priced[0].InsurerShare).Cmp(priced[0].Total) != 0 {
		t.Fatal("occurrence shares must sum to occurrence total")
	}
}

func TestPriceOrthopedicOccurrences_ShareRounding(t *testing.T) {
	// 28600 x 60% = 17160; odd tariffs still split without losing a cent.
	occurrences := []models.ActOccurrence{orthoOccurrence("ORTHESE", "28601", "60")}

	priced, total, patientShare, insurerShare := models.PriceOrthopedicOccurrences(occurrences)
	if patientShare.Add(insurerShare).Cmp(total) != 0 {
		t.Fatalf("shares %s + %s do not sum to total %s",
			patientShare.String(), insurerShare.String(), total.String())
	}
	if priced[0].InsurerShare.Cmp(dec("17161")) != 0 {
		t.Fatalf("expected insurer share 17161; got %s", priced[0].InsurerShare.String())
	}
}

func TestPriceOrthopedicOccurrences_EmptyIsZero(t *testing.T) {
	_, total, patientShare, insurerShare := models.PriceOrthopedicOccurrences(nil)
	if !total.IsZero() || !patientShare.IsZero() || !insurerShare.IsZero() {
		t.Fatal("expected all aggregates zero for empty occurrence list")
	}
}

func TestBundleTotalsSum(t *testing.T) {
	office := plainOffice()
	office.SundayMultiplier = dec("1.25")

	_, careTotal := models.PriceCareOccurrences(
		[]models.ActOccurrence{careOccurrence("AMP", "4830", "1")},
		models.FlagSundayHoliday, office)
	_, orthoTotal, _, _ := models.PriceOrthopedicOccurrences(
		[]models.ActOccurrence{orthoOccurrence("SEMELLE", "4830", "100")})

	sum := careTotal.Add(orthoTotal)
	if sum.Cmp(dec("10868")) != 0 {
		t.Fatalf("expected bundle sum 10868; got %s", sum.String())
	}
}
