/*
pricing.go - Required-amount computation per registration

PURPOSE:
  Computes how much a registration owes, split into the performance price
  (per-participant, with a cheaper federation rate) and the diplomas/medals
  price (per-unit).

RULES:
  - performance = pricePerParticipant * max(0, participants - federation)
                + pricePerFederationParticipant * federation
    where the federation rate falls back to the regular rate when unset.
  - diplomas/medals = pricePerDiploma * diplomas + pricePerMedal * medals,
    where a missing unit price degrades that term to zero.
  - Counts are clamped at zero; results are never negative.
  - A missing pricing row while paying PERFORMANCE is a hard validation
    error handled by the caller (payment.go), not here.
*/
package billing

import "github.com/shopspring/decimal"

// PerformancePrice computes the performance requirement for the given
// pricing row and participant counts.
func PerformancePrice(p EventPricing, participants, federationParticipants int) decimal.Decimal {
	if participants < 0 {
		participants = 0
	}
	if federationParticipants < 0 {
		federationParticipants = 0
	}
	regular := participants - federationParticipants
	if regular < 0 {
		regular = 0
	}

	federationRate := p.PricePerParticipant
	if p.PricePerFederationParticipant != nil {
		federationRate = *p.PricePerFederationParticipant
	}

	return p.PricePerParticipant.Mul(decimal.NewFromInt(int64(regular))).
		Add(federationRate.Mul(decimal.NewFromInt(int64(federationParticipants))))
}

// DiplomasMedalsPrice computes the diplomas/medals requirement for an event's
// unit prices and the given counts. Missing unit prices contribute zero.
func DiplomasMedalsPrice(ev Event, diplomas, medals int) decimal.Decimal {
	return DiplomasPrice(ev, diplomas).Add(MedalsPrice(ev, medals))
}

// DiplomasPrice computes the diplomas term alone.
func DiplomasPrice(ev Event, diplomas int) decimal.Decimal {
	if ev.PricePerDiploma == nil || diplomas <= 0 {
		return decimal.Zero
	}
	return ev.PricePerDiploma.Mul(decimal.NewFromInt(int64(diplomas)))
}

// MedalsPrice computes the medals term alone.
func MedalsPrice(ev Event, medals int) decimal.Decimal {
	if ev.PricePerMedal == nil || medals <= 0 {
		return decimal.Zero
	}
	return ev.PricePerMedal.Mul(decimal.NewFromInt(int64(medals)))
}
