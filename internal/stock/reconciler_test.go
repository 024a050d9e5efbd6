package stock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Classify(t *testing.T) {
	testCases := []struct {
		name      string
		remaining int32
		threshold int32
		expected  Classification
	}{
		{name: "zero is exhausted", remaining: 0, threshold: 10, expected: Exhausted},
		{name: "one is low", remaining: 1, threshold: 10, expected: Low},
		{name: "at threshold is low", remaining: 10, threshold: 10, expected: Low},
		{name: "above threshold is sufficient", remaining: 11, threshold: 10, expected: Sufficient},
		{name: "custom threshold", remaining: 4, threshold: 3, expected: Sufficient},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.remaining, tc.threshold))
		})
	}
}

func Test_Reconciler_Plan(t *testing.T) {
	productID := uuid.New()
	variantID := uuid.New()

	plain := func(available int32) Level {
		return Level{ProductID: productID, Available: available, ProductName: "Mug"}
	}
	variant := func(available int32) Level {
		return Level{ProductID: productID, VariantID: &variantID, HasVariants: true, Available: available, ProductName: "Shirt", VariantName: "M/Red"}
	}

	testCases := []struct {
		name        string
		items       []LineItem
		levels      []Level
		expected    []Decrement
		expectError error
	}{
		{
			name:   "sufficient remaining, no alert",
			items:  []LineItem{{ProductID: productID, Quantity: 3}},
			levels: []Level{plain(20)},
			expected: []Decrement{{
				ProductID: productID, Requested: 3, Remaining: 17,
				Class: Sufficient, ProductName: "Mug",
			}},
		},
		{
			name:   "low remaining",
			items:  []LineItem{{ProductID: productID, Quantity: 2}},
			levels: []Level{plain(11)},
			expected: []Decrement{{
				ProductID: productID, Requested: 2, Remaining: 9,
				Class: Low, ProductName: "Mug",
			}},
		},
		{
			name:   "exhausted flips availability for non-variant product",
			items:  []LineItem{{ProductID: productID, Quantity: 5}},
			levels: []Level{plain(5)},
			expected: []Decrement{{
				ProductID: productID, Requested: 5, Remaining: 0,
				Class: Exhausted, ProductName: "Mug", MarkUnavailable: true,
			}},
		},
		{
			name:   "exhausted variant does not flip product availability",
			items:  []LineItem{{ProductID: productID, VariantID: &variantID, Quantity: 2}},
			levels: []Level{variant(2)},
			expected: []Decrement{{
				ProductID: productID, VariantID: &variantID, Requested: 2, Remaining: 0,
				Class: Exhausted, ProductName: "Shirt", VariantName: "M/Red",
			}},
		},
		{
			name:        "insufficient stock fails the whole order",
			items:       []LineItem{{ProductID: productID, Quantity: 6, ProductName: "Mug"}},
			levels:      []Level{plain(5)},
			expectError: ErrInsufficientStock,
		},
		{
			name:        "variant missing",
			items:       []LineItem{{ProductID: productID, VariantID: &variantID, Quantity: 1, ProductName: "Shirt"}},
			levels:      []Level{plain(5)},
			expectError: ErrVariantNotFound,
		},
		{
			name:        "product missing",
			items:       []LineItem{{ProductID: uuid.New(), Quantity: 1, ProductName: "Gone"}},
			levels:      []Level{plain(5)},
			expectError: ErrProductNotFound,
		},
		{
			name:        "non-positive quantity",
			items:       []LineItem{{ProductID: productID, Quantity: 0}},
			levels:      []Level{plain(5)},
			expectError: ErrInvalidQuantity,
		},
		{
			name: "repeated lines for one unit are aggregated",
			items: []LineItem{
				{ProductID: productID, Quantity: 3},
				{ProductID: productID, Quantity: 3, ProductName: "Mug"},
			},
			levels:      []Level{plain(5)},
			expectError: ErrInsufficientStock,
		},
		{
			name: "later failing item aborts earlier passing ones",
			items: []LineItem{
				{ProductID: productID, Quantity: 1},
				{ProductID: uuid.New(), Quantity: 1, ProductName: "Gone"},
			},
			levels:      []Level{plain(5)},
			expectError: ErrProductNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			r := NewReconciler(DefaultLowThreshold)
			// when
			plan, err := r.Plan(tc.items, tc.levels)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, plan)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, plan)
		})
	}
}

func Test_Reconciler_Plan_MultiItem(t *testing.T) {
	// given: two units, both with plenty of stock
	p1, p2 := uuid.New(), uuid.New()
	r := NewReconciler(10)
	items := []LineItem{
		{ProductID: p1, Quantity: 5},
		{ProductID: p2, Quantity: 20},
	}
	levels := []Level{
		{ProductID: p1, Available: 5, ProductName: "A"},
		{ProductID: p2, Available: 100, ProductName: "B"},
	}
	// when
	plan, err := r.Plan(items, levels)
	// then: one exhausted, one sufficient, decrement equals request
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, Exhausted, plan[0].Class)
	assert.True(t, plan[0].MarkUnavailable)
	assert.Equal(t, int32(80), plan[1].Remaining)
	assert.Equal(t, Sufficient, plan[1].Class)
}

func Test_NewReconciler_ThresholdFallback(t *testing.T) {
	r := NewReconciler(0)
	assert.Equal(t, DefaultLowThreshold, r.lowThreshold)
}
