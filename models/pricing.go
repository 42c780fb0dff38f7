package models

import (
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

// Pricing is pure recomputation from the current act occurrences and
// the office settings: document totals are never stored deltas, every
// write path recomputes from scratch so the same inputs always produce
// the same totals.

var percentDivisor = decimal.NewFromInt(100)

// careLineMultiplier combines the surcharge multipliers selected by the
// sheet flags. A flag without a configured multiplier (zero value on
// the office) contributes nothing.
func careLineMultiplier(flags CareSheetFlags, office *Office) decimal.Decimal {
	multiplier := decimal.NewFromInt(1)
	if office == nil {
		return multiplier
	}
	if flags.Has(FlagNight) && office.NightMultiplier.IsPositive() {
		multiplier = multiplier.Mul(office.NightMultiplier)
	}
	if flags.Has(FlagSundayHoliday) && office.SundayMultiplier.IsPositive() {
		multiplier = multiplier.Mul(office.SundayMultiplier)
	}
	if flags.Has(FlagEmergency) && office.EmergencyMultiplier.IsPositive() {
		multiplier = multiplier.Mul(office.EmergencyMultiplier)
	}
	return multiplier
}

// PriceCareOccurrences fills the per-occurrence totals of a care sheet
// and returns the sheet total in cents. Each occurrence prices as
// unit price x coefficient x surcharge multiplier, rounded half away
// from zero; the travel indemnity is a flat office amount added once
// per sheet when the flag is set.
func PriceCareOccurrences(occurrences []ActOccurrence, flags CareSheetFlags, office *Office) ([]ActOccurrence, decimal.Decimal) {
	multiplier := careLineMultiplier(flags, office)
	total := decimal.Zero

	priced := make([]ActOccurrence, len(occurrences))
	for i, occurrence := range occurrences {
		line := utils.RoundAmount(occurrence.UnitPrice.Mul(occurrence.Coefficient).Mul(multiplier))
		occurrence.Total = line
		occurrence.PatientShare = decimal.Zero
		occurrence.InsurerShare = line
		priced[i] = occurrence
		total = total.Add(line)
	}

	if flags.Has(FlagTravelIndemnity) && office != nil {
		total = total.Add(utils.RoundAmount(office.TravelIndemnityAmount))
	}
	return priced, total
}

// PriceOrthopedicOccurrences fills the per-occurrence tariff split of
// an orthopedic invoice and returns the document totals. The tariff is
// the catalog unit price; the insurer covers tariff x rate percent and
// the patient carries the remainder.
func PriceOrthopedicOccurrences(occurrences []ActOccurrence) (priced []ActOccurrence, total, patientShare, insurerShare decimal.Decimal) {
	total = decimal.Zero
	patientShare = decimal.Zero
	insurerShare = decimal.Zero

	priced = make([]ActOccurrence, len(occurrences))
	for i, occurrence := range occurrences {
		tariff := utils.RoundAmount(occurrence.UnitPrice)
		covered := utils.RoundAmount(tariff.Mul(occurrence.Rate).Div(percentDivisor))
		if covered.GreaterThan(tariff) {
			covered = tariff
		}

		occurrence.Total = tariff
		occurrence.InsurerShare = covered
		occurrence.PatientShare = tariff.Sub(covered)
		priced[i] = occurrence

		total = total.Add(occurrence.Total)
		insurerShare = insurerShare.Add(occurrence.InsurerShare)
		patientShare = patientShare.Add(occurrence.PatientShare)
	}
	return priced, total, patientShare, insurerShare
}
