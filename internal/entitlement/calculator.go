// Package entitlement derives which sections of a course an enrollment may
// access from the cumulative amount paid.
//
// Access is pay-in-sequence: sections are taken in ascending sort order and
// each one unlocks only when the remaining credit covers its full price. The
// first section that cannot be covered stops the walk, so the unlocked set is
// always a prefix of the ordered sections.
package entitlement

import (
	"cmp"
	"slices"

	"github.com/ariefcatur/go-course-access/internal/courses"
)

// Ordered returns a copy of sections sorted by SortOrder. Ties keep input order.
func Ordered(sections []courses.Section) []courses.Section {
	out := slices.Clone(sections)
	slices.SortStableFunc(out, func(a, b courses.Section) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return out
}

// Unlocked returns the ids of the sections that amountPaid unlocks.
// amountPaid and every price must be non-negative; the result is undefined otherwise.
func Unlocked(amountPaid int64, sections []courses.Section) map[string]bool {
	unlocked := make(map[string]bool, len(sections))
	remaining := amountPaid
	for _, s := range Ordered(sections) {
		if remaining < s.PriceCents {
			break
		}
		unlocked[s.ID] = true
		remaining -= s.PriceCents
	}
	return unlocked
}
