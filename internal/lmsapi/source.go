package lmsapi

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-course-access/internal/courses"
)

// Session binds a client to one user's bearer token and implements
// entitlement.Source against the LMS.
type Session struct {
	Client *Client
	Token  string
	UserID string
}

func (c *Client) Session(token, userID string) *Session {
	return &Session{Client: c, Token: token, UserID: userID}
}

// Snapshot looks the enrollment up among the session user's enrollments.
func (s *Session) Snapshot(ctx context.Context, enrollmentID string) (courses.Snapshot, error) {
	all, err := s.Client.AllEnrollments(ctx, s.Token, s.UserID)
	if err != nil {
		return courses.Snapshot{}, err
	}
	for _, e := range all {
		if e.ID == enrollmentID {
			return s.snapshot(ctx, e)
		}
	}
	return courses.Snapshot{}, fmt.Errorf("enrollment %s: %w", enrollmentID, courses.ErrNotFound)
}

func (s *Session) SnapshotForCourse(ctx context.Context, userID, courseID string) (courses.Snapshot, error) {
	all, err := s.Client.AllEnrollments(ctx, s.Token, userID)
	if err != nil {
		return courses.Snapshot{}, err
	}
	for _, e := range all {
		if e.Course != nil && e.Course.ID == courseID {
			snap, err := s.snapshot(ctx, e)
			if err != nil {
				return courses.Snapshot{}, err
			}
			snap.Enrollment.UserID = userID
			return snap, nil
		}
	}
	sections, err := s.sections(ctx, courseID)
	if err != nil {
		return courses.Snapshot{}, err
	}
	return courses.Snapshot{CourseID: courseID, Sections: sections}, nil
}

func (s *Session) snapshot(ctx context.Context, e Enrollment) (courses.Snapshot, error) {
	if e.Course == nil {
		// An enrollment without a course grants nothing.
		return courses.Snapshot{Sections: []courses.Section{}}, nil
	}
	enr, err := e.ToEnrollment(s.UserID)
	if err != nil {
		return courses.Snapshot{}, err
	}
	sections, err := s.sections(ctx, e.Course.ID)
	if err != nil {
		return courses.Snapshot{}, err
	}
	return courses.Snapshot{Enrollment: &enr, CourseID: e.Course.ID, Sections: sections}, nil
}

// sections reads the course's full price list from the sections endpoint.
func (s *Session) sections(ctx context.Context, courseID string) ([]courses.Section, error) {
	remote, err := s.Client.AllSections(ctx, s.Token, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]courses.Section, 0, len(remote))
	for _, r := range remote {
		sec, err := r.ToSection(courseID)
		if err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, nil
}
