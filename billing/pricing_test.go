package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/quickstep/payment-engine/billing"
)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPerformancePrice_FederationRate(t *testing.T) {
	// GIVEN: 10 participants, 4 of them federation members at a cheaper rate
	// THEN: 6 * 500 + 4 * 300 = 4200
	pricing := billing.EventPricing{
		PricePerParticipant:           amount("500"),
		PricePerFederationParticipant: decimalPtr("300"),
	}

	price := billing.PerformancePrice(pricing, 10, 4)

	assert.True(t, price.Equal(amount("4200")), "got %s", price)
}

func TestPerformancePrice_FederationRateFallback(t *testing.T) {
	// Without a federation rate everyone pays the regular rate.
	pricing := billing.EventPricing{PricePerParticipant: amount("500")}

	price := billing.PerformancePrice(pricing, 10, 4)

	assert.True(t, price.Equal(amount("5000")), "got %s", price)
}

func TestPerformancePrice_CountsClamped(t *testing.T) {
	pricing := billing.EventPricing{
		PricePerParticipant:           amount("500"),
		PricePerFederationParticipant: decimalPtr("300"),
	}

	// More federation members than participants: no negative regular count.
	price := billing.PerformancePrice(pricing, 2, 5)
	assert.True(t, price.Equal(amount("1500")), "got %s", price)

	assert.True(t, billing.PerformancePrice(pricing, -3, -1).IsZero())
}

func TestDiplomasMedalsPrice(t *testing.T) {
	ev := billing.Event{
		PricePerDiploma: decimalPtr("150"),
		PricePerMedal:   decimalPtr("100"),
	}

	price := billing.DiplomasMedalsPrice(ev, 3, 2)
	assert.True(t, price.Equal(amount("650")), "got %s", price)
}

func TestDiplomasMedalsPrice_MissingUnitPrices(t *testing.T) {
	// An event without diploma/medal prices owes nothing for them.
	price := billing.DiplomasMedalsPrice(billing.Event{}, 3, 2)
	assert.True(t, price.IsZero())

	onlyDiplomas := billing.Event{PricePerDiploma: decimalPtr("150")}
	price = billing.DiplomasMedalsPrice(onlyDiplomas, 2, 5)
	assert.True(t, price.Equal(amount("300")), "got %s", price)
}
