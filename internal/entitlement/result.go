package entitlement

import (
	"github.com/ariefcatur/go-course-access/internal/courses"
)

type SectionAccess struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	SortOrder  int    `json:"sort_order"`
	Unlocked   bool   `json:"unlocked"`
}

// Result is the entitlement of one enrollment, sections in sort order.
type Result struct {
	EnrollmentID    string                   `json:"enrollment_id,omitempty"`
	UserID          string                   `json:"user_id,omitempty"`
	CourseID        string                   `json:"course_id"`
	Status          courses.EnrollmentStatus `json:"status,omitempty"`
	AmountPaidCents int64                    `json:"amount_paid_cents"`
	// RemainingCreditCents is paid money not yet spent on an unlocked
	// section. It never unlocks anything on its own.
	RemainingCreditCents int64           `json:"remaining_credit_cents"`
	Sections             []SectionAccess `json:"sections"`
}

func (r Result) IsUnlocked(sectionID string) bool {
	for _, s := range r.Sections {
		if s.ID == sectionID {
			return s.Unlocked
		}
	}
	return false
}

func (r Result) UnlockedIDs() []string {
	ids := []string{}
	for _, s := range r.Sections {
		if s.Unlocked {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// NewlyUnlocked lists sections unlocked in r but not in prev.
func (r Result) NewlyUnlocked(prev Result) []string {
	ids := []string{}
	for _, s := range r.Sections {
		if s.Unlocked && !prev.IsUnlocked(s.ID) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Locked is the result for a course the user cannot access at all.
func Locked(courseID string, sections []courses.Section) Result {
	res := Result{CourseID: courseID, Sections: []SectionAccess{}}
	for _, s := range Ordered(sections) {
		res.Sections = append(res.Sections, access(s, false))
	}
	return res
}

func access(s courses.Section, unlocked bool) SectionAccess {
	return SectionAccess{ID: s.ID, Title: s.Title, PriceCents: s.PriceCents, SortOrder: s.SortOrder, Unlocked: unlocked}
}

// Evaluate computes the result for a snapshot. A missing or INACTIVE
// enrollment locks every section. Malformed section data is an error, never a
// default.
func Evaluate(snap courses.Snapshot) (Result, error) {
	if err := courses.CheckSections(snap.Sections); err != nil {
		return Result{}, err
	}
	e := snap.Enrollment
	if e == nil {
		return Locked(snap.CourseID, snap.Sections), nil
	}

	res := Locked(snap.CourseID, snap.Sections)
	res.EnrollmentID = e.ID
	res.UserID = e.UserID
	res.Status = e.Status
	res.AmountPaidCents = e.AmountPaidCents
	if e.Status == courses.StatusInactive || e.AmountPaidCents < 0 {
		return res, nil
	}

	unlocked := Unlocked(e.AmountPaidCents, snap.Sections)
	spent := int64(0)
	for i := range res.Sections {
		if unlocked[res.Sections[i].ID] {
			res.Sections[i].Unlocked = true
			spent += res.Sections[i].PriceCents
		}
	}
	res.RemainingCreditCents = e.AmountPaidCents - spent
	return res, nil
}

// WithAmount re-evaluates r's sections as if amountPaid were the cumulative payment.
func (r Result) WithAmount(amountPaid int64) Result {
	sections := make([]courses.Section, 0, len(r.Sections))
	for _, s := range r.Sections {
		sections = append(sections, courses.Section{ID: s.ID, Title: s.Title, PriceCents: s.PriceCents, SortOrder: s.SortOrder})
	}
	snap := courses.Snapshot{CourseID: r.CourseID, Sections: sections}
	if r.EnrollmentID != "" {
		snap.Enrollment = &courses.Enrollment{
			ID: r.EnrollmentID, UserID: r.UserID, CourseID: r.CourseID, AmountPaidCents: amountPaid, Status: r.Status,
		}
	}
	out, err := Evaluate(snap)
	if err != nil {
		// r was produced by Evaluate, so its sections already passed the check.
		return Locked(r.CourseID, sections)
	}
	return out
}
