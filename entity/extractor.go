// Package entity extracts structured business identifiers (customer IDs,
// order IDs, SKUs) from free text using fixed pattern rules. Extraction is
// pure and deterministic: no network calls, no side effects, and an empty
// result is never an error.
package entity

import (
	"regexp"
	"strings"
)

// Identifier shapes used across the support domain:
//   - customer IDs:  cust_001
//   - order IDs:     ORD-2038
//   - SKUs:          RING-101, NECK-205 (alpha prefix, numeric suffix)
//
// SKU excludes the ORD- prefix so order IDs never double-match.
var (
	customerPattern = regexp.MustCompile(`\bcust_\d+\b`)
	orderPattern    = regexp.MustCompile(`\bORD-\d+\b`)
	skuPattern      = regexp.MustCompile(`\b[A-Z]{3,8}-\d+\b`)
)

// Set holds the typed identifiers discovered in a piece of text. Slices keep
// first-seen order with duplicates removed. The JSON field names match the
// shape tool providers and the oracle exchange.
type Set struct {
	CustomerIDs []string `json:"customer_ids"`
	OrderIDs    []string `json:"order_ids"`
	SKUs        []string `json:"skus"`
}

// Extract scans text and returns every identifier that matches a known shape.
// A text with no identifiers yields an empty Set, not an error.
func Extract(text string) Set {
	var s Set
	s.CustomerIDs = dedupe(customerPattern.FindAllString(text, -1))
	s.OrderIDs = dedupe(orderPattern.FindAllString(text, -1))
	for _, m := range skuPattern.FindAllString(text, -1) {
		if strings.HasPrefix(m, "ORD-") {
			continue
		}
		s.SKUs = append(s.SKUs, m)
	}
	s.SKUs = dedupe(s.SKUs)
	return s
}

// Empty reports whether the set contains no identifiers of any type.
func (s Set) Empty() bool {
	return len(s.CustomerIDs) == 0 && len(s.OrderIDs) == 0 && len(s.SKUs) == 0
}

// Merge returns the union of s and other, preserving s's ordering first.
func (s Set) Merge(other Set) Set {
	return Set{
		CustomerIDs: dedupe(append(append([]string{}, s.CustomerIDs...), other.CustomerIDs...)),
		OrderIDs:    dedupe(append(append([]string{}, s.OrderIDs...), other.OrderIDs...)),
		SKUs:        dedupe(append(append([]string{}, s.SKUs...), other.SKUs...)),
	}
}

// All returns every identifier in the set as a flat slice, customers first.
func (s Set) All() []string {
	out := make([]string, 0, len(s.CustomerIDs)+len(s.OrderIDs)+len(s.SKUs))
	out = append(out, s.CustomerIDs...)
	out = append(out, s.OrderIDs...)
	out = append(out, s.SKUs...)
	return out
}

// Contains reports whether id appears in any of the typed slices.
func (s Set) Contains(id string) bool {
	for _, v := range s.All() {
		if v == id {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
