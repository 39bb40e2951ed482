package httpx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-course-access/internal/courses"
)

// memStore is an in-memory Store and entitlement.Source.
type memStore struct {
	mu          sync.Mutex
	courses     map[string]courses.Course
	sections    map[string][]courses.Section
	content     map[string]courses.SectionContent
	enrollments map[string]courses.Enrollment
	payments    map[string]courses.Payment
	progress    map[string]courses.Progress // keyed by user + "/" + video
}

func newMemStore() *memStore {
	return &memStore{
		courses:     map[string]courses.Course{},
		sections:    map[string][]courses.Section{},
		content:     map[string]courses.SectionContent{},
		enrollments: map[string]courses.Enrollment{},
		payments:    map[string]courses.Payment{},
		progress:    map[string]courses.Progress{},
	}
}

func (s *memStore) CreateCourseTx(_ context.Context, in courses.CreateCourseInput) (courses.Course, []courses.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := courses.Course{ID: uuid.NewString(), Title: in.Title, Level: in.Level, Status: courses.CourseDraft, InstructorID: in.InstructorID}
	seen := map[int]bool{}
	var secs []courses.Section
	for _, si := range in.Sections {
		if seen[*si.SortOrder] {
			return courses.Course{}, nil, courses.ErrDuplicateSortOrder
		}
		seen[*si.SortOrder] = true
		secs = append(secs, courses.Section{ID: uuid.NewString(), CourseID: c.ID, Title: si.Title, PriceCents: *si.PriceCents, SortOrder: *si.SortOrder})
	}
	s.courses[c.ID] = c
	s.sections[c.ID] = secs
	return c, secs, nil
}

func (s *memStore) GetCourse(_ context.Context, courseID string) (courses.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[courseID]
	if !ok {
		return courses.Course{}, fmt.Errorf("course %s: %w", courseID, courses.ErrNotFound)
	}
	return c, nil
}

func (s *memStore) ListSections(_ context.Context, courseID string, p courses.Page) (courses.PageResult[courses.Section], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return courses.PageResult[courses.Section]{}, fmt.Errorf("course %s: %w", courseID, courses.ErrNotFound)
	}
	all := s.sections[courseID]
	lo := min(p.Offset(), len(all))
	hi := min(lo+p.Size, len(all))
	return courses.NewPageResult(all[lo:hi], p, int64(len(all))), nil
}

func (s *memStore) ListSectionContent(_ context.Context, sectionID string) (courses.SectionContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.content[sectionID]
	if !ok {
		return courses.SectionContent{}, fmt.Errorf("section %s: %w", sectionID, courses.ErrNotFound)
	}
	return c, nil
}

func (s *memStore) CreateEnrollment(_ context.Context, userID, courseID string) (courses.Enrollment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return courses.Enrollment{}, false, fmt.Errorf("course %s: %w", courseID, courses.ErrNotFound)
	}
	for _, e := range s.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return e, true, nil
		}
	}
	e := courses.Enrollment{ID: uuid.NewString(), UserID: userID, CourseID: courseID, Status: courses.StatusPendingPaid, EnrolledAt: time.Now()}
	s.enrollments[e.ID] = e
	return e, false, nil
}

func (s *memStore) GetEnrollment(_ context.Context, enrollmentID string) (courses.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return courses.Enrollment{}, fmt.Errorf("enrollment %s: %w", enrollmentID, courses.ErrNotFound)
	}
	return e, nil
}

func (s *memStore) ListEnrollments(_ context.Context, userID string, p courses.Page) (courses.PageResult[courses.EnrollmentDetail], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []courses.EnrollmentDetail
	for _, e := range s.enrollments {
		if e.UserID == userID {
			out = append(out, courses.EnrollmentDetail{Enrollment: e, Course: s.courses[e.CourseID], Sections: s.sections[e.CourseID]})
		}
	}
	return courses.NewPageResult(out, p, int64(len(out))), nil
}

func (s *memStore) RecordPayment(_ context.Context, enrollmentID, externalID string, amount int64) (courses.Payment, courses.Enrollment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[externalID]; ok {
		if p.EnrollmentID != enrollmentID {
			return courses.Payment{}, courses.Enrollment{}, false, courses.ErrAlreadyExists
		}
		return p, s.enrollments[enrollmentID], true, nil
	}
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return courses.Payment{}, courses.Enrollment{}, false, courses.ErrNotFound
	}
	e.AmountPaidCents += amount
	if e.Status == courses.StatusPendingPaid {
		e.Status = courses.StatusActive
	}
	s.enrollments[enrollmentID] = e
	p := courses.Payment{ID: uuid.NewString(), EnrollmentID: enrollmentID, ExternalID: externalID, AmountCents: amount, CreatedAt: time.Now()}
	s.payments[externalID] = p
	return p, e, false, nil
}

func (s *memStore) SetEnrollmentStatus(_ context.Context, enrollmentID string, to courses.EnrollmentStatus) (courses.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return courses.Enrollment{}, courses.ErrNotFound
	}
	if !courses.CanTransition(e.Status, to) {
		return courses.Enrollment{}, courses.ErrInvalidTransition
	}
	e.Status = to
	s.enrollments[enrollmentID] = e
	return e, nil
}

func (s *memStore) Snapshot(_ context.Context, enrollmentID string) (courses.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return courses.Snapshot{}, fmt.Errorf("enrollment %s: %w", enrollmentID, courses.ErrNotFound)
	}
	return courses.Snapshot{Enrollment: &e, CourseID: e.CourseID, Sections: s.sections[e.CourseID]}, nil
}

func (s *memStore) SnapshotForCourse(_ context.Context, userID, courseID string) (courses.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[courseID]; !ok {
		return courses.Snapshot{}, fmt.Errorf("course %s: %w", courseID, courses.ErrNotFound)
	}
	snap := courses.Snapshot{CourseID: courseID, Sections: s.sections[courseID]}
	for _, e := range s.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			snap.Enrollment = &e
		}
	}
	return snap, nil
}

func (s *memStore) LocateVideo(_ context.Context, videoID string) (courses.Video, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.content {
		for _, v := range c.Videos {
			if v.ID == videoID {
				return v, c.Section.CourseID, nil
			}
		}
	}
	return courses.Video{}, "", fmt.Errorf("video %s: %w", videoID, courses.ErrNotFound)
}

func (s *memStore) SaveProgress(_ context.Context, p courses.Progress) (courses.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.UserID + "/" + p.VideoID
	if prev, ok := s.progress[key]; ok {
		p.ID = prev.ID
	} else {
		p.ID = uuid.NewString()
	}
	s.progress[key] = p
	return p, nil
}

func (s *memStore) ListProgress(_ context.Context, userID, courseID string) ([]courses.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []courses.Progress{}
	for _, p := range s.progress {
		if p.UserID == userID && p.CourseID == courseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) progressOf(userID, videoID string) (courses.Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[userID+"/"+videoID]
	return p, ok
}
