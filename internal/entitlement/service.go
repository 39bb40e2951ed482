package entitlement

import (
	"context"
	"log"

	"github.com/ariefcatur/go-course-access/internal/courses"
)

// Source reads enrollment and section data as one consistent snapshot.
type Source interface {
	Snapshot(ctx context.Context, enrollmentID string) (courses.Snapshot, error)
	SnapshotForCourse(ctx context.Context, userID, courseID string) (courses.Snapshot, error)
}

// Cache stores results by enrollment id. Every Invalidate advances the
// enrollment's generation, and Set only stores a result computed under the
// current generation, so a read that raced a write can never repopulate the
// cache with the pre-write result.
type Cache interface {
	Get(ctx context.Context, enrollmentID string) (Result, bool, error)
	Generation(ctx context.Context, enrollmentID string) (int64, error)
	Set(ctx context.Context, res Result, gen int64) error
	Invalidate(ctx context.Context, enrollmentID string) error
}

type Service struct {
	Source Source
	Cache  Cache // optional
}

func NewService(src Source, cache Cache) *Service {
	return &Service{Source: src, Cache: cache}
}

// ForEnrollment returns the entitlement of one enrollment, served from the
// cache when possible. Cache failures fall back to recomputation.
func (s *Service) ForEnrollment(ctx context.Context, enrollmentID string) (Result, error) {
	if s.Cache != nil {
		res, ok, err := s.Cache.Get(ctx, enrollmentID)
		if err != nil {
			log.Printf("entitlement cache get %s: %v", enrollmentID, err)
		} else if ok {
			return res, nil
		}
	}
	return s.Refresh(ctx, enrollmentID)
}

// Refresh recomputes from the source and overwrites the cache unless the
// enrollment was invalidated while the snapshot was read.
func (s *Service) Refresh(ctx context.Context, enrollmentID string) (Result, error) {
	gen, cacheable := s.generation(ctx, enrollmentID)
	snap, err := s.Source.Snapshot(ctx, enrollmentID)
	if err != nil {
		return Result{}, err
	}
	res, err := Evaluate(snap)
	if err != nil {
		return Result{}, err
	}
	if cacheable {
		s.store(ctx, res, gen)
	}
	return res, nil
}

// ForCourse returns the user's entitlement for a course. A user with no
// enrollment gets every section locked. The enrollment id is only known after
// the snapshot, too late to pin a generation, so the result is not cached.
func (s *Service) ForCourse(ctx context.Context, userID, courseID string) (Result, error) {
	snap, err := s.Source.SnapshotForCourse(ctx, userID, courseID)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(snap)
}

// Invalidate drops the cached result after a write to the enrollment.
func (s *Service) Invalidate(ctx context.Context, enrollmentID string) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.Invalidate(ctx, enrollmentID)
}

// generation reads the cache generation ahead of a snapshot. A failed read
// makes the result uncacheable.
func (s *Service) generation(ctx context.Context, enrollmentID string) (int64, bool) {
	if s.Cache == nil {
		return 0, false
	}
	gen, err := s.Cache.Generation(ctx, enrollmentID)
	if err != nil {
		log.Printf("entitlement cache generation %s: %v", enrollmentID, err)
		return 0, false
	}
	return gen, true
}

func (s *Service) store(ctx context.Context, res Result, gen int64) {
	if err := s.Cache.Set(ctx, res, gen); err != nil {
		log.Printf("entitlement cache set %s: %v", res.EnrollmentID, err)
	}
}
