package catalog

import (
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceForKnownPlan(t *testing.T) {
	r, err := NewResolver([]models.PricingEntry{
		{PlanID: "class4", DisplayName: "Class 4 Tuition", AmountMinorUnits: 600, Currency: "INR"},
	})
	require.NoError(t, err)

	entry, err := r.PriceFor("class4")
	require.NoError(t, err)
	assert.Equal(t, int64(600), entry.AmountMinorUnits)
	assert.Equal(t, "Class 4 Tuition", entry.DisplayName)
}

func TestPriceForUnknownPlan(t *testing.T) {
	r := Default()

	_, err := r.PriceFor("class99")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestNewResolverRejectsNonPositiveAmount(t *testing.T) {
	_, err := NewResolver([]models.PricingEntry{
		{PlanID: "free", AmountMinorUnits: 0, Currency: "INR"},
	})
	assert.Error(t, err)
}

func TestDefaultTableAmountsPositive(t *testing.T) {
	r := Default()
	for _, planID := range []string{"class4", "class8", "class12"} {
		entry, err := r.PriceFor(planID)
		require.NoError(t, err)
		assert.Positive(t, entry.AmountMinorUnits)
	}
}
