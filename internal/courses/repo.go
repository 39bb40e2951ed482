package courses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// snapshotTx reads enrollment and sections from one MVCC snapshot so a
// concurrent payment is either fully visible or not at all.
var snapshotTx = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

const courseColumns = `id, title, description, short_description, course_img, level, status,
	estimated_duration_hours, instructor_id, created_at, updated_at`

const enrollmentColumns = `id, user_id, course_id, amount_paid_cents, status, enrolled_at, updated_at`

func scanCourse(row pgx.Row) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ShortDescription, &c.CourseImg, &c.Level,
		&c.Status, &c.EstimatedDurationHours, &c.InstructorID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanEnrollment(row pgx.Row) (Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.AmountPaidCents, &e.Status, &e.EnrolledAt, &e.UpdatedAt)
	return e, err
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// CreateCourseTx stores a course together with its sections, videos and files.
// Either everything is committed or nothing.
func (r *Repo) CreateCourseTx(ctx context.Context, in CreateCourseInput) (Course, []Section, error) {
	seen := make(map[int]bool, len(in.Sections))
	for _, s := range in.Sections {
		if s.PriceCents == nil || s.SortOrder == nil {
			return Course{}, nil, fmt.Errorf("section %q: %w", s.Title, ErrMalformedSection)
		}
		if seen[*s.SortOrder] {
			return Course{}, nil, fmt.Errorf("sort_order %d: %w", *s.SortOrder, ErrDuplicateSortOrder)
		}
		seen[*s.SortOrder] = true
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Course{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	course, err := scanCourse(tx.QueryRow(ctx, `
		INSERT INTO courses(id, title, description, short_description, course_img, level, status,
		                    estimated_duration_hours, instructor_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+courseColumns,
		uuid.NewString(), in.Title, in.Description, in.ShortDescription, in.CourseImg, in.Level,
		CoursePublished, in.EstimatedDurationHours, in.InstructorID,
	))
	if err != nil {
		return Course{}, nil, err
	}

	sections := make([]Section, 0, len(in.Sections))
	for _, s := range in.Sections {
		sec := Section{
			ID:          uuid.NewString(),
			CourseID:    course.ID,
			Title:       s.Title,
			Description: s.Description,
			PriceCents:  *s.PriceCents,
			SortOrder:   *s.SortOrder,
			IsPublished: true,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO sections(id, course_id, title, description, price_cents, sort_order, is_published)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			sec.ID, sec.CourseID, sec.Title, sec.Description, sec.PriceCents, sec.SortOrder, sec.IsPublished,
		); err != nil {
			return Course{}, nil, err
		}
		for _, v := range s.Videos {
			if _, err := tx.Exec(ctx, `
				INSERT INTO videos(id, section_id, title, video_url, duration_seconds, sort_order, is_preview)
				VALUES ($1,$2,$3,$4,$5,$6,$7)`,
				uuid.NewString(), sec.ID, v.Title, v.VideoURL, derefInt(v.DurationSeconds), derefInt(v.SortOrder), v.IsPreview,
			); err != nil {
				return Course{}, nil, err
			}
		}
		for _, f := range s.Files {
			if _, err := tx.Exec(ctx, `
				INSERT INTO files(id, section_id, title, file_url, sort_order, is_preview)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				uuid.NewString(), sec.ID, f.Title, f.FileURL, f.SortOrder, f.IsPreview,
			); err != nil {
				return Course{}, nil, err
			}
		}
		sections = append(sections, sec)
	}

	if err := tx.Commit(ctx); err != nil {
		return Course{}, nil, err
	}
	return course, sections, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (r *Repo) GetCourse(ctx context.Context, courseID string) (Course, error) {
	c, err := scanCourse(r.DB.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id=$1`, courseID))
	if err != nil {
		return Course{}, notFound(err, "course "+courseID)
	}
	return c, nil
}

func (r *Repo) GetSection(ctx context.Context, sectionID string) (Section, error) {
	var s Section
	err := r.DB.QueryRow(ctx, `
		SELECT id, course_id, title, description, price_cents, sort_order, is_published
		FROM sections WHERE id=$1`, sectionID).
		Scan(&s.ID, &s.CourseID, &s.Title, &s.Description, &s.PriceCents, &s.SortOrder, &s.IsPublished)
	if err != nil {
		return Section{}, notFound(err, "section "+sectionID)
	}
	return s, nil
}

// ListSections returns one page of a course's sections ordered by sort_order.
func (r *Repo) ListSections(ctx context.Context, courseID string, p Page) (PageResult[Section], error) {
	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM sections WHERE course_id=$1`, courseID).Scan(&total); err != nil {
		return PageResult[Section]{}, err
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, course_id, title, description, price_cents, sort_order, is_published
		FROM sections WHERE course_id=$1
		ORDER BY sort_order LIMIT $2 OFFSET $3`, courseID, p.Size, p.Offset())
	if err != nil {
		return PageResult[Section]{}, err
	}
	out, err := collectSections(rows)
	if err != nil {
		return PageResult[Section]{}, err
	}
	return NewPageResult(out, p, total), nil
}

func sectionsOf(ctx context.Context, q querier, courseID string) ([]Section, error) {
	rows, err := q.Query(ctx, `
		SELECT id, course_id, title, description, price_cents, sort_order, is_published
		FROM sections WHERE course_id=$1 ORDER BY sort_order`, courseID)
	if err != nil {
		return nil, err
	}
	return collectSections(rows)
}

func collectSections(rows pgx.Rows) ([]Section, error) {
	defer rows.Close()
	var out []Section
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.CourseID, &s.Title, &s.Description, &s.PriceCents, &s.SortOrder, &s.IsPublished); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSectionContent returns the section with its videos and files, each ordered by sort_order.
func (r *Repo) ListSectionContent(ctx context.Context, sectionID string) (SectionContent, error) {
	sec, err := r.GetSection(ctx, sectionID)
	if err != nil {
		return SectionContent{}, err
	}
	out := SectionContent{Section: sec, Videos: []Video{}, Files: []File{}}

	rows, err := r.DB.Query(ctx, `
		SELECT id, section_id, title, video_url, duration_seconds, sort_order, is_preview
		FROM videos WHERE section_id=$1 ORDER BY sort_order`, sectionID)
	if err != nil {
		return SectionContent{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.SectionID, &v.Title, &v.VideoURL, &v.DurationSeconds, &v.SortOrder, &v.IsPreview); err != nil {
			return SectionContent{}, err
		}
		out.Videos = append(out.Videos, v)
	}
	if err := rows.Err(); err != nil {
		return SectionContent{}, err
	}

	frows, err := r.DB.Query(ctx, `
		SELECT id, section_id, title, file_url, sort_order, is_preview
		FROM files WHERE section_id=$1 ORDER BY sort_order`, sectionID)
	if err != nil {
		return SectionContent{}, err
	}
	defer frows.Close()
	for frows.Next() {
		var f File
		if err := frows.Scan(&f.ID, &f.SectionID, &f.Title, &f.FileURL, &f.SortOrder, &f.IsPreview); err != nil {
			return SectionContent{}, err
		}
		out.Files = append(out.Files, f)
	}
	return out, frows.Err()
}

// firstSectionPrice returns the price of the lowest sort_order section.
func firstSectionPrice(ctx context.Context, q querier, courseID string) (price int64, ok bool, err error) {
	err = q.QueryRow(ctx, `SELECT price_cents FROM sections WHERE course_id=$1 ORDER BY sort_order LIMIT 1`, courseID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

// CreateEnrollment is idempotent on (user, course): an existing enrollment is
// returned with existed=true.
func (r *Repo) CreateEnrollment(ctx context.Context, userID, courseID string) (e Enrollment, existed bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Enrollment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id=$1)`, courseID).Scan(&exists); err != nil {
		return Enrollment{}, false, err
	}
	if !exists {
		return Enrollment{}, false, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	first, hasSections, err := firstSectionPrice(ctx, tx, courseID)
	if err != nil {
		return Enrollment{}, false, err
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO enrollments(id, user_id, course_id, amount_paid_cents, status)
		VALUES ($1,$2,$3,0,$4)
		ON CONFLICT (user_id, course_id) DO NOTHING`,
		uuid.NewString(), userID, courseID, StatusForPayment(0, first, hasSections))
	if err != nil {
		return Enrollment{}, false, err
	}
	existed = ct.RowsAffected() == 0

	e, err = scanEnrollment(tx.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID))
	if err != nil {
		return Enrollment{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Enrollment{}, false, err
	}
	return e, existed, nil
}

func (r *Repo) GetEnrollment(ctx context.Context, enrollmentID string) (Enrollment, error) {
	e, err := scanEnrollment(r.DB.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id=$1`, enrollmentID))
	if err != nil {
		return Enrollment{}, notFound(err, "enrollment "+enrollmentID)
	}
	return e, nil
}

// ListEnrollments returns a user's enrollments with course and sections, all
// read inside one snapshot.
func (r *Repo) ListEnrollments(ctx context.Context, userID string, p Page) (PageResult[EnrollmentDetail], error) {
	tx, err := r.DB.BeginTx(ctx, snapshotTx)
	if err != nil {
		return PageResult[EnrollmentDetail]{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return PageResult[EnrollmentDetail]{}, err
	}

	rows, err := tx.Query(ctx, `
		SELECT e.id, e.user_id, e.course_id, e.amount_paid_cents, e.status, e.enrolled_at, e.updated_at,
		       c.id, c.title, c.description, c.short_description, c.course_img, c.level, c.status,
		       c.estimated_duration_hours, c.instructor_id, c.created_at, c.updated_at
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.user_id=$1
		ORDER BY e.enrolled_at DESC, e.id
		LIMIT $2 OFFSET $3`, userID, p.Size, p.Offset())
	if err != nil {
		return PageResult[EnrollmentDetail]{}, err
	}
	var out []EnrollmentDetail
	for rows.Next() {
		var d EnrollmentDetail
		c := &d.Course
		if err := rows.Scan(&d.ID, &d.UserID, &d.CourseID, &d.AmountPaidCents, &d.Status, &d.EnrolledAt, &d.UpdatedAt,
			&c.ID, &c.Title, &c.Description, &c.ShortDescription, &c.CourseImg, &c.Level, &c.Status,
			&c.EstimatedDurationHours, &c.InstructorID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return PageResult[EnrollmentDetail]{}, err
		}
		out = append(out, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return PageResult[EnrollmentDetail]{}, err
	}

	for i := range out {
		secs, err := sectionsOf(ctx, tx, out[i].CourseID)
		if err != nil {
			return PageResult[EnrollmentDetail]{}, err
		}
		if secs == nil {
			secs = []Section{}
		}
		out[i].Sections = secs
	}
	if err := tx.Commit(ctx); err != nil {
		return PageResult[EnrollmentDetail]{}, err
	}
	return NewPageResult(out, p, total), nil
}

// RecordPayment adds amount to an enrollment's cumulative total. It is
// idempotent on externalID: a replay returns the original payment with
// existed=true and does not touch the total.
func (r *Repo) RecordPayment(ctx context.Context, enrollmentID, externalID string, amount int64) (pay Payment, e Enrollment, existed bool, err error) {
	if amount <= 0 {
		return Payment{}, Enrollment{}, false, ErrInvalidAmount
	}

	if pay, e, err = r.existingPayment(ctx, enrollmentID, externalID); err == nil {
		return pay, e, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, Enrollment{}, false, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Payment{}, Enrollment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize writers on the enrollment row.
	e, err = scanEnrollment(tx.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id=$1 FOR UPDATE`, enrollmentID))
	if err != nil {
		return Payment{}, Enrollment{}, false, notFound(err, "enrollment "+enrollmentID)
	}

	pay = Payment{ID: uuid.NewString(), EnrollmentID: enrollmentID, ExternalID: externalID, AmountCents: amount}
	ct, err := tx.Exec(ctx, `
		INSERT INTO payments(id, enrollment_id, external_id, amount_cents)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (external_id) DO NOTHING`, pay.ID, enrollmentID, externalID, amount)
	if err != nil {
		return Payment{}, Enrollment{}, false, err
	}
	if ct.RowsAffected() == 0 {
		// Lost a race with the same external id; report the winner.
		_ = tx.Rollback(ctx)
		pay, e, err = r.existingPayment(ctx, enrollmentID, externalID)
		if err != nil {
			return Payment{}, Enrollment{}, false, err
		}
		return pay, e, true, nil
	}

	status := e.Status
	if status == StatusPendingPaid {
		first, hasSections, err := firstSectionPrice(ctx, tx, e.CourseID)
		if err != nil {
			return Payment{}, Enrollment{}, false, err
		}
		status = StatusForPayment(e.AmountPaidCents+amount, first, hasSections)
	}

	e, err = scanEnrollment(tx.QueryRow(ctx, `
		UPDATE enrollments
		SET amount_paid_cents = amount_paid_cents + $2, status = $3, updated_at = now()
		WHERE id=$1
		RETURNING `+enrollmentColumns, enrollmentID, amount, status))
	if err != nil {
		return Payment{}, Enrollment{}, false, err
	}
	if err := tx.QueryRow(ctx, `SELECT created_at FROM payments WHERE id=$1`, pay.ID).Scan(&pay.CreatedAt); err != nil {
		return Payment{}, Enrollment{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Payment{}, Enrollment{}, false, err
	}
	return pay, e, false, nil
}

// existingPayment looks up a payment by external id. It returns pgx.ErrNoRows
// when none exists and ErrAlreadyExists when the id belongs to another enrollment.
func (r *Repo) existingPayment(ctx context.Context, enrollmentID, externalID string) (Payment, Enrollment, error) {
	var p Payment
	err := r.DB.QueryRow(ctx, `
		SELECT id, enrollment_id, external_id, amount_cents, created_at
		FROM payments WHERE external_id=$1`, externalID).
		Scan(&p.ID, &p.EnrollmentID, &p.ExternalID, &p.AmountCents, &p.CreatedAt)
	if err != nil {
		return Payment{}, Enrollment{}, err
	}
	if p.EnrollmentID != enrollmentID {
		return Payment{}, Enrollment{}, fmt.Errorf("payment %s: %w", externalID, ErrAlreadyExists)
	}
	e, err := r.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Payment{}, Enrollment{}, err
	}
	return p, e, nil
}

func (r *Repo) SetEnrollmentStatus(ctx context.Context, enrollmentID string, to EnrollmentStatus) (Enrollment, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Enrollment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEnrollment(tx.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id=$1 FOR UPDATE`, enrollmentID))
	if err != nil {
		return Enrollment{}, notFound(err, "enrollment "+enrollmentID)
	}
	if !CanTransition(e.Status, to) {
		return Enrollment{}, fmt.Errorf("%s -> %s: %w", e.Status, to, ErrInvalidTransition)
	}
	e, err = scanEnrollment(tx.QueryRow(ctx, `
		UPDATE enrollments SET status=$2, updated_at=now() WHERE id=$1
		RETURNING `+enrollmentColumns, enrollmentID, to))
	if err != nil {
		return Enrollment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// Snapshot reads an enrollment and its course's sections consistently.
func (r *Repo) Snapshot(ctx context.Context, enrollmentID string) (Snapshot, error) {
	tx, err := r.DB.BeginTx(ctx, snapshotTx)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	e, err := scanEnrollment(tx.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id=$1`, enrollmentID))
	if err != nil {
		return Snapshot{}, notFound(err, "enrollment "+enrollmentID)
	}
	secs, err := sectionsOf(ctx, tx, e.CourseID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Enrollment: &e, CourseID: e.CourseID, Sections: secs}, nil
}

// SnapshotForCourse is Snapshot keyed by (user, course). A user without an
// enrollment gets a snapshot with a nil Enrollment.
func (r *Repo) SnapshotForCourse(ctx context.Context, userID, courseID string) (Snapshot, error) {
	tx, err := r.DB.BeginTx(ctx, snapshotTx)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id=$1)`, courseID).Scan(&exists); err != nil {
		return Snapshot{}, err
	}
	if !exists {
		return Snapshot{}, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}

	snap := Snapshot{CourseID: courseID}
	e, err := scanEnrollment(tx.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID))
	switch {
	case err == nil:
		snap.Enrollment = &e
	case !errors.Is(err, pgx.ErrNoRows):
		return Snapshot{}, err
	}

	if snap.Sections, err = sectionsOf(ctx, tx, courseID); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LocateVideo returns a video with the id of the course it belongs to.
func (r *Repo) LocateVideo(ctx context.Context, videoID string) (Video, string, error) {
	var (
		v        Video
		courseID string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT v.id, v.section_id, v.title, v.video_url, v.duration_seconds, v.sort_order, v.is_preview, s.course_id
		FROM videos v JOIN sections s ON s.id = v.section_id
		WHERE v.id=$1`, videoID).
		Scan(&v.ID, &v.SectionID, &v.Title, &v.VideoURL, &v.DurationSeconds, &v.SortOrder, &v.IsPreview, &courseID)
	if err != nil {
		return Video{}, "", notFound(err, "video "+videoID)
	}
	return v, courseID, nil
}

const progressColumns = `id, user_id, course_id, video_id, watch_duration_seconds,
	completion_percentage, is_completed, last_watched_at`

func scanProgress(row pgx.Row) (Progress, error) {
	var p Progress
	err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &p.VideoID, &p.WatchDurationSeconds,
		&p.CompletionPercentage, &p.IsCompleted, &p.LastWatchedAt)
	return p, err
}

// SaveProgress upserts the user's progress on a video; there is one row per (user, video).
func (r *Repo) SaveProgress(ctx context.Context, p Progress) (Progress, error) {
	return scanProgress(r.DB.QueryRow(ctx, `
		INSERT INTO progress(id, user_id, course_id, video_id, watch_duration_seconds,
			completion_percentage, is_completed, last_watched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id, video_id) DO UPDATE SET
			watch_duration_seconds = EXCLUDED.watch_duration_seconds,
			completion_percentage  = EXCLUDED.completion_percentage,
			is_completed           = EXCLUDED.is_completed,
			last_watched_at        = EXCLUDED.last_watched_at
		RETURNING `+progressColumns,
		uuid.NewString(), p.UserID, p.CourseID, p.VideoID, p.WatchDurationSeconds,
		p.CompletionPercentage, p.IsCompleted, p.LastWatchedAt))
}

// ListProgress returns the user's progress in a course in section then video order.
func (r *Repo) ListProgress(ctx context.Context, userID, courseID string) ([]Progress, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.user_id, p.course_id, p.video_id, p.watch_duration_seconds,
			p.completion_percentage, p.is_completed, p.last_watched_at
		FROM progress p
		JOIN videos v ON v.id = p.video_id
		JOIN sections s ON s.id = v.section_id
		WHERE p.user_id=$1 AND p.course_id=$2
		ORDER BY s.sort_order, v.sort_order`, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
