package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Set
	}{
		{
			name: "mixed identifiers",
			text: "Customer cust_001 complained about ORD-2038, the ring is RING-101.",
			want: Set{
				CustomerIDs: []string{"cust_001"},
				OrderIDs:    []string{"ORD-2038"},
				SKUs:        []string{"RING-101"},
			},
		},
		{
			name: "duplicates collapse keeping first-seen order",
			text: "ORD-102 then ORD-7 then ORD-102 again",
			want: Set{OrderIDs: []string{"ORD-102", "ORD-7"}},
		},
		{
			name: "order ids never leak into skus",
			text: "ORD-500 only",
			want: Set{OrderIDs: []string{"ORD-500"}},
		},
		{
			name: "no matches yields empty set",
			text: "the customer was unhappy about shipping",
			want: Set{},
		},
		{
			name: "lowercase prefixes are not skus",
			text: "ring-101 is not an identifier but NECK-205 is",
			want: Set{SKUs: []string{"NECK-205"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	text := "cust_7 ordered ORD-102 and ORD-9; see SKUs BRAC-300, RING-101"
	first := Extract(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Extract(text))
	}
}

func TestSetMerge(t *testing.T) {
	a := Set{CustomerIDs: []string{"cust_1"}, OrderIDs: []string{"ORD-1"}}
	b := Set{CustomerIDs: []string{"cust_1", "cust_2"}, SKUs: []string{"RING-101"}}

	merged := a.Merge(b)
	assert.Equal(t, []string{"cust_1", "cust_2"}, merged.CustomerIDs)
	assert.Equal(t, []string{"ORD-1"}, merged.OrderIDs)
	assert.Equal(t, []string{"RING-101"}, merged.SKUs)

	// Merge never mutates its receivers.
	assert.Equal(t, []string{"cust_1"}, a.CustomerIDs)
}

func TestSetEmptyAndContains(t *testing.T) {
	assert.True(t, Set{}.Empty())

	s := Extract("refund ORD-42 for cust_9")
	assert.False(t, s.Empty())
	assert.True(t, s.Contains("ORD-42"))
	assert.True(t, s.Contains("cust_9"))
	assert.False(t, s.Contains("RING-101"))
}
