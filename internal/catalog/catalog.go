package catalog

import (
	"errors"
	"fmt"

	"checkout-service/internal/models"
)

// ErrPlanNotFound is returned when a plan id is absent from the fee table.
// Callers must stop the checkout on it; there is no default price.
var ErrPlanNotFound = errors.New("plan not found")

// Resolver answers price lookups from an immutable fee table. Pure, no I/O.
type Resolver struct {
	entries map[string]models.PricingEntry
}

// NewResolver builds a resolver from a fee table. Entries with a
// non-positive amount are rejected up front so a zero-priced order can
// never be created later.
func NewResolver(entries []models.PricingEntry) (*Resolver, error) {
	table := make(map[string]models.PricingEntry, len(entries))
	for _, e := range entries {
		if e.AmountMinorUnits <= 0 {
			return nil, fmt.Errorf("invalid amount for plan %q: %d", e.PlanID, e.AmountMinorUnits)
		}
		if _, dup := table[e.PlanID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", e.PlanID)
		}
		table[e.PlanID] = e
	}
	return &Resolver{entries: table}, nil
}

// Default returns the resolver over the institute's monthly tuition table.
// Amounts are in paise.
func Default() *Resolver {
	r, err := NewResolver(defaultTable)
	if err != nil {
		// The table is compiled in; a bad entry is a programming error.
		panic(err)
	}
	return r
}

// PriceFor returns the pricing entry for a plan, or ErrPlanNotFound.
func (r *Resolver) PriceFor(planID string) (models.PricingEntry, error) {
	entry, ok := r.entries[planID]
	if !ok {
		return models.PricingEntry{}, fmt.Errorf("%w: %q", ErrPlanNotFound, planID)
	}
	return entry, nil
}

var defaultTable = []models.PricingEntry{
	{PlanID: "class4", DisplayName: "Class 4 Tuition", AmountMinorUnits: 60000, Currency: "INR"},
	{PlanID: "class5", DisplayName: "Class 5 Tuition", AmountMinorUnits: 60000, Currency: "INR"},
	{PlanID: "class6", DisplayName: "Class 6 Tuition", AmountMinorUnits: 70000, Currency: "INR"},
	{PlanID: "class7", DisplayName: "Class 7 Tuition", AmountMinorUnits: 70000, Currency: "INR"},
	{PlanID: "class8", DisplayName: "Class 8 Tuition", AmountMinorUnits: 80000, Currency: "INR"},
	{PlanID: "class9", DisplayName: "Class 9 Tuition", AmountMinorUnits: 100000, Currency: "INR"},
	{PlanID: "class10", DisplayName: "Class 10 Tuition", AmountMinorUnits: 120000, Currency: "INR"},
	{PlanID: "class11", DisplayName: "Class 11 Tuition", AmountMinorUnits: 150000, Currency: "INR"},
	{PlanID: "class12", DisplayName: "Class 12 Tuition", AmountMinorUnits: 150000, Currency: "INR"},
}
