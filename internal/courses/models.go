package courses

import (
	"fmt"
	"time"
)

// Amounts are integer cents throughout; see lmsapi for decimal conversion.

type Course struct {
	ID                     string       `json:"id"`
	Title                  string       `json:"title"`
	Description            string       `json:"description"`
	ShortDescription       string       `json:"short_description"`
	CourseImg              string       `json:"course_img"`
	Level                  CourseLevel  `json:"level"`
	Status                 CourseStatus `json:"status"`
	EstimatedDurationHours float64      `json:"estimated_duration_hours"`
	InstructorID           string       `json:"instructor_id"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

type Section struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	SortOrder   int    `json:"sort_order"`
	IsPublished bool   `json:"is_published"`
}

type Video struct {
	ID              string `json:"id"`
	SectionID       string `json:"section_id"`
	Title           string `json:"title"`
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds"`
	SortOrder       int    `json:"sort_order"`
	IsPreview       bool   `json:"is_preview"`
}

type File struct {
	ID        string `json:"id"`
	SectionID string `json:"section_id"`
	Title     string `json:"title"`
	FileURL   string `json:"file_url"`
	SortOrder int    `json:"sort_order"`
	IsPreview bool   `json:"is_preview"`
}

type Enrollment struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	CourseID        string           `json:"course_id"`
	AmountPaidCents int64            `json:"amount_paid_cents"`
	Status          EnrollmentStatus `json:"status"`
	EnrolledAt      time.Time        `json:"enrolled_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// EnrollmentDetail is an enrollment with its course summary and section list,
// the shape served by the enrollment listing.
type EnrollmentDetail struct {
	Enrollment
	Course   Course    `json:"course"`
	Sections []Section `json:"sections"`
}

type Payment struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	ExternalID   string    `json:"external_id"`
	AmountCents  int64     `json:"amount_cents"`
	CreatedAt    time.Time `json:"created_at"`
}

// Snapshot is one enrollment and its course's sections read at the same
// point in time. Enrollment is nil when the user has no enrollment.
type Snapshot struct {
	Enrollment *Enrollment
	CourseID   string
	Sections   []Section
}

// SectionContent holds the videos and files of one section.
type SectionContent struct {
	Section Section `json:"section"`
	Videos  []Video `json:"videos"`
	Files   []File  `json:"files"`
}

// CheckSections rejects section data that cannot be priced: a negative price,
// a non-positive sort order or an empty id.
func CheckSections(sections []Section) error {
	for _, s := range sections {
		switch {
		case s.ID == "":
			return fmt.Errorf("section without id: %w", ErrMalformedSection)
		case s.PriceCents < 0:
			return fmt.Errorf("section %s: negative price: %w", s.ID, ErrMalformedSection)
		case s.SortOrder <= 0:
			return fmt.Errorf("section %s: sort order %d: %w", s.ID, s.SortOrder, ErrMalformedSection)
		}
	}
	return nil
}
