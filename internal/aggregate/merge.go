// Package aggregate folds per-document extraction results into one
// project-level result.
//
// Numeric fields keep the largest known value, commodities are a
// case-insensitive union, and string fields keep the first known value in
// document order. The numeric and commodity rules are order independent;
// the string rule depends on the order results are supplied in.
package aggregate

import (
	"strings"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
)

// Merge combines results in the given (document) order. With no input it
// returns an empty result.
func Merge(results ...entity.ExtractionResult) entity.AggregatedResult {
	var acc entity.AggregatedResult
	for _, r := range results {
		acc = MergeInto(acc, r)
	}
	return acc
}

// MergeInto folds next into acc and returns the combined result. acc is
// treated as coming earlier in document order. Neither argument is modified.
func MergeInto(acc entity.AggregatedResult, next entity.ExtractionResult) entity.AggregatedResult {
	return entity.AggregatedResult{
		NPV:         maxOf(acc.NPV, next.NPV),
		IRR:         maxOf(acc.IRR, next.IRR),
		Capex:       maxOf(acc.Capex, next.Capex),
		Opex:        maxOf(acc.Opex, next.Opex),
		MineLife:    maxOf(acc.MineLife, next.MineLife),
		Location:    firstOf(acc.Location, next.Location),
		Stage:       firstOf(acc.Stage, next.Stage),
		Commodities: Union(acc.Commodities, next.Commodities),
		Resource:    firstOf(acc.Resource, next.Resource),
		Reserve:     firstOf(acc.Reserve, next.Reserve),
		Description: firstOf(acc.Description, next.Description),
	}
}

func maxOf(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil || *a >= *b:
		v := *a
		return &v
	default:
		v := *b
		return &v
	}
}

func firstOf(a, b *string) *string {
	if a != nil {
		v := *a
		return &v
	}
	if b != nil {
		v := *b
		return &v
	}
	return nil
}

// Union returns the case-insensitive union of the given lists. The first
// spelling seen wins and first-seen order is kept. Blank entries are
// skipped; an empty union is nil (absent).
func Union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, s := range l {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			key := strings.ToLower(s)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
