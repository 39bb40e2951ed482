package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-course-access/internal/courses"
)

type fakeSource struct {
	mu    sync.Mutex
	snaps map[string]courses.Snapshot
	calls int
	err   error
	// hold, when set, is called after the snapshot is taken and before it is returned.
	hold func()
}

func (f *fakeSource) Snapshot(_ context.Context, enrollmentID string) (courses.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	snap, ok := f.snaps[enrollmentID]
	err, hold := f.err, f.hold
	f.mu.Unlock()

	if err != nil {
		return courses.Snapshot{}, err
	}
	if !ok {
		return courses.Snapshot{}, courses.ErrNotFound
	}
	if hold != nil {
		hold()
	}
	return snap, nil
}

func (f *fakeSource) SnapshotForCourse(_ context.Context, userID, courseID string) (courses.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return courses.Snapshot{}, f.err
	}
	for _, s := range f.snaps {
		if s.CourseID == courseID && s.Enrollment != nil && s.Enrollment.UserID == userID {
			return s, nil
		}
	}
	return courses.Snapshot{CourseID: courseID, Sections: scenario()}, nil
}

func (f *fakeSource) set(enrollmentID string, e *courses.Enrollment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snaps[enrollmentID]
	snap.Enrollment = e
	f.snaps[enrollmentID] = snap
}

type memCache struct {
	mu     sync.Mutex
	m      map[string]Result
	gens   map[string]int64
	getErr error
}

func newMemCache() *memCache { return &memCache{m: map[string]Result{}, gens: map[string]int64{}} }

func (c *memCache) Get(_ context.Context, id string) (Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Result{}, false, c.getErr
	}
	r, ok := c.m[id]
	return r, ok, nil
}

func (c *memCache) Generation(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], nil
}

func (c *memCache) Set(_ context.Context, r Result, gen int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[r.EnrollmentID] == gen {
		c.m[r.EnrollmentID] = r
	}
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[id]++
	delete(c.m, id)
	return nil
}

func (c *memCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.m[id]
	return ok
}

func newFixture(paid int64) (*fakeSource, *memCache, *Service) {
	src := &fakeSource{snaps: map[string]courses.Snapshot{
		"e1": {Enrollment: enrollment(paid, courses.StatusActive), CourseID: "c1", Sections: scenario()},
	}}
	cache := newMemCache()
	return src, cache, NewService(src, cache)
}

func TestForEnrollmentCachesResult(t *testing.T) {
	src, cache, svc := newFixture(1000)
	ctx := context.Background()

	res, err := svc.ForEnrollment(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, res.UnlockedIDs())
	assert.True(t, cache.has("e1"))

	_, err = svc.ForEnrollment(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	src, _, svc := newFixture(1000)
	ctx := context.Background()

	_, err := svc.ForEnrollment(ctx, "e1")
	require.NoError(t, err)

	src.set("e1", enrollment(3000, courses.StatusActive))
	require.NoError(t, svc.Invalidate(ctx, "e1"))

	res, err := svc.ForEnrollment(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, res.UnlockedIDs(), 3)
	assert.Equal(t, 2, src.calls)
}

func TestCacheErrorFallsBackToSource(t *testing.T) {
	src, cache, svc := newFixture(1000)
	cache.getErr = errors.New("redis down")

	res, err := svc.ForEnrollment(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, res.UnlockedIDs())
	assert.Equal(t, 1, src.calls)
}

func TestSourceErrorNeverUnlocks(t *testing.T) {
	src, _, svc := newFixture(1000)
	src.err = errors.New("db down")

	res, err := svc.ForEnrollment(context.Background(), "e1")
	require.Error(t, err)
	assert.Empty(t, res.Sections)
}

func TestForCourseWithoutEnrollment(t *testing.T) {
	_, cache, svc := newFixture(1000)

	res, err := svc.ForCourse(context.Background(), "stranger", "c1")
	require.NoError(t, err)
	assert.Empty(t, res.UnlockedIDs())
	assert.Len(t, res.Sections, 3)
	assert.False(t, cache.has(""))
}

func TestForCourseWithEnrollment(t *testing.T) {
	_, cache, svc := newFixture(3000)

	res, err := svc.ForCourse(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Len(t, res.UnlockedIDs(), 3)
	assert.False(t, cache.has("e1"))
}

func TestReadRacingDeactivationIsNotCached(t *testing.T) {
	src, cache, svc := newFixture(3000)
	ctx := context.Background()

	taken := make(chan struct{})
	release := make(chan struct{})
	src.hold = func() {
		close(taken)
		<-release
	}

	done := make(chan Result)
	go func() {
		res, err := svc.ForEnrollment(ctx, "e1")
		assert.NoError(t, err)
		done <- res
	}()

	<-taken
	src.mu.Lock()
	src.hold = nil
	src.mu.Unlock()
	src.set("e1", enrollment(3000, courses.StatusInactive))
	require.NoError(t, svc.Invalidate(ctx, "e1"))
	close(release)

	stale := <-done
	assert.Len(t, stale.UnlockedIDs(), 3)
	assert.False(t, cache.has("e1"))

	res, err := svc.ForEnrollment(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, courses.StatusInactive, res.Status)
	assert.Empty(t, res.UnlockedIDs())
}

type failingGenCache struct{ *memCache }

func (failingGenCache) Generation(context.Context, string) (int64, error) {
	return 0, errors.New("redis down")
}

func TestGenerationErrorSkipsCaching(t *testing.T) {
	src, _, _ := newFixture(1000)
	cache := failingGenCache{newMemCache()}
	svc := NewService(src, cache)

	res, err := svc.ForEnrollment(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, res.UnlockedIDs())
	assert.False(t, cache.has("e1"))
}

func TestServiceWithoutCache(t *testing.T) {
	src, _, _ := newFixture(1000)
	svc := NewService(src, nil)

	_, err := svc.ForEnrollment(context.Background(), "e1")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(context.Background(), "e1"))
}
