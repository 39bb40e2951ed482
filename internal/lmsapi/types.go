package lmsapi

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-course-access/internal/courses"
)

// GlobalResponse is the envelope every LMS endpoint answers with.
type GlobalResponse[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

// Paginated mirrors the LMS page body. CurrentPage is 1-based while the
// page query parameter is 0-based.
type Paginated[T any] struct {
	Content     []T   `json:"content"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type SectionSummary struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Price     *decimal.Decimal `json:"price"`
	SortOrder *int             `json:"sortOrder"`
}

type Section struct {
	SectionSummary
	Description string `json:"description"`
	IsPublished *bool  `json:"isPublished"`
	Duration    string `json:"duration"`
}

type CourseSummary struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	CourseImg string           `json:"courseImg"`
	Level     string           `json:"level"`
	Sections  []SectionSummary `json:"sections"`
}

type Enrollment struct {
	ID         string              `json:"id"`
	AmountPaid decimal.NullDecimal `json:"amountPaid"`
	Status     string              `json:"status"`
	IsEnrolled bool                `json:"isEnrolled"`
	Course     *CourseSummary      `json:"course"`
}

// Cents converts a decimal amount to integer cents. Amounts with more than two
// fractional digits are rejected rather than rounded.
func Cents(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(2)) {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d)
	}
	cents := d.Shift(2).BigInt()
	if !cents.IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d)
	}
	return cents.Int64(), nil
}

// ToSection converts a remote section, failing with courses.ErrMalformedSection
// when price or sort order is missing.
func (s SectionSummary) ToSection(courseID string) (courses.Section, error) {
	if s.Price == nil {
		return courses.Section{}, fmt.Errorf("section %s: no price: %w", s.ID, courses.ErrMalformedSection)
	}
	if s.SortOrder == nil {
		return courses.Section{}, fmt.Errorf("section %s: no sort order: %w", s.ID, courses.ErrMalformedSection)
	}
	cents, err := Cents(*s.Price)
	if err != nil {
		return courses.Section{}, fmt.Errorf("section %s: %v: %w", s.ID, err, courses.ErrMalformedSection)
	}
	return courses.Section{
		ID:         s.ID,
		CourseID:   courseID,
		Title:      s.Title,
		PriceCents: cents,
		SortOrder:  *s.SortOrder,
	}, nil
}

func (s Section) ToSection(courseID string) (courses.Section, error) {
	out, err := s.SectionSummary.ToSection(courseID)
	if err != nil {
		return out, err
	}
	out.Description = s.Description
	out.IsPublished = s.IsPublished == nil || *s.IsPublished
	return out, nil
}

// ToEnrollment converts a remote enrollment for userID. A null amount counts
// as nothing paid. An unknown status is treated as INACTIVE.
func (e Enrollment) ToEnrollment(userID string) (courses.Enrollment, error) {
	out := courses.Enrollment{ID: e.ID, UserID: userID, Status: courses.EnrollmentStatus(e.Status)}
	if e.Course != nil {
		out.CourseID = e.Course.ID
	}
	if e.AmountPaid.Valid {
		cents, err := Cents(e.AmountPaid.Decimal)
		if err != nil {
			return courses.Enrollment{}, fmt.Errorf("enrollment %s: %w", e.ID, err)
		}
		out.AmountPaidCents = cents
	}
	if !out.Status.Valid() || !e.IsEnrolled {
		out.Status = courses.StatusInactive
	}
	return out, nil
}
