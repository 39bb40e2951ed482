package httpx

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-course-access/internal/courses"
	"github.com/ariefcatur/go-course-access/internal/entitlement"
	"github.com/ariefcatur/go-course-access/internal/redisx"
)

// Store is the persistence the handlers need; *courses.Repo implements it.
type Store interface {
	CreateCourseTx(ctx context.Context, in courses.CreateCourseInput) (courses.Course, []courses.Section, error)
	GetCourse(ctx context.Context, courseID string) (courses.Course, error)
	ListSections(ctx context.Context, courseID string, p courses.Page) (courses.PageResult[courses.Section], error)
	ListSectionContent(ctx context.Context, sectionID string) (courses.SectionContent, error)
	CreateEnrollment(ctx context.Context, userID, courseID string) (courses.Enrollment, bool, error)
	GetEnrollment(ctx context.Context, enrollmentID string) (courses.Enrollment, error)
	ListEnrollments(ctx context.Context, userID string, p courses.Page) (courses.PageResult[courses.EnrollmentDetail], error)
	RecordPayment(ctx context.Context, enrollmentID, externalID string, amount int64) (courses.Payment, courses.Enrollment, bool, error)
	SetEnrollmentStatus(ctx context.Context, enrollmentID string, to courses.EnrollmentStatus) (courses.Enrollment, error)
	LocateVideo(ctx context.Context, videoID string) (courses.Video, string, error)
	SaveProgress(ctx context.Context, p courses.Progress) (courses.Progress, error)
	ListProgress(ctx context.Context, userID, courseID string) ([]courses.Progress, error)
}

type Emitter interface {
	Emit(env courses.Envelope) error
}

type CoursesHandler struct {
	Store        Store
	Entitlements *entitlement.Service
	Events       Emitter       // publishes enrollment.payment.recorded
	Redis        *redis.Client // payment idempotency marks; optional
	Service      string
}

func (h *CoursesHandler) Register(r chi.Router, secret []byte) {
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(secret))

		r.With(requireAdmin).Post("/courses", h.createCourse)
		r.Get("/courses/{id}", h.getCourse)
		r.Get("/courses/{id}/sections", h.listSections)
		r.Get("/courses/{id}/entitlements", h.courseEntitlements)
		r.Get("/sections/{id}/content", h.sectionContent)
		r.Get("/courses/{id}/progress", h.courseProgress)
		r.Put("/videos/{id}/progress", h.updateProgress)
		r.Post("/videos/{id}/complete", h.completeVideo)

		r.Post("/enrollments", h.enroll)
		r.Get("/users/{id}/enrollments", h.listEnrollments)
		r.Get("/enrollments/{id}/entitlements", h.enrollmentEntitlements)
		r.Post("/enrollments/{id}/payments", h.recordPayment)
		r.With(requireAdmin).Patch("/enrollments/{id}/status", h.updateStatus)
	})
}

func (h *CoursesHandler) createCourse(w http.ResponseWriter, r *http.Request) {
	var in courses.CreateCourseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := courses.Validate(in); err != nil {
		writeError(w, err)
		return
	}
	in.InstructorID = principalFrom(r.Context()).UserID

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	course, sections, err := h.Store.CreateCourseTx(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"course": course, "sections": sections})
}

func (h *CoursesHandler) getCourse(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Store.GetCourse(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type sectionView struct {
	courses.Section
	Unlocked bool `json:"unlocked"`
}

func (h *CoursesHandler) listSections(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")
	user := principalFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, err := h.Store.ListSections(ctx, courseID, pageParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Entitlements.ForCourse(ctx, user.UserID, courseID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]sectionView, 0, len(page.Content))
	for _, s := range page.Content {
		views = append(views, sectionView{Section: s, Unlocked: res.IsUnlocked(s.ID)})
	}
	writeJSON(w, http.StatusOK, courses.PageResult[sectionView]{
		Content:     views,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		TotalItems:  page.TotalItems,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	})
}

func (h *CoursesHandler) courseEntitlements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Entitlements.ForCourse(ctx, principalFrom(r.Context()).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CoursesHandler) sectionContent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	content, err := h.Store.ListSectionContent(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Entitlements.ForCourse(ctx, principalFrom(r.Context()).UserID, content.Section.CourseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entitlement.Gate(res, content))
}

func (h *CoursesHandler) courseProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Store.ListProgress(ctx, principalFrom(r.Context()).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CoursesHandler) updateProgress(w http.ResponseWriter, r *http.Request) {
	var in courses.UpdateProgressInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := courses.Validate(in); err != nil {
		writeError(w, err)
		return
	}
	h.recordProgress(w, r, func(userID, courseID string, v courses.Video) courses.Progress {
		return courses.Watched(userID, courseID, v, *in.WatchDurationSeconds)
	})
}

func (h *CoursesHandler) completeVideo(w http.ResponseWriter, r *http.Request) {
	h.recordProgress(w, r, courses.Completed)
}

// recordProgress saves progress on the video in the URL once the caller's
// entitlement shows the video as viewable.
func (h *CoursesHandler) recordProgress(w http.ResponseWriter, r *http.Request, next func(userID, courseID string, v courses.Video) courses.Progress) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID := principalFrom(r.Context()).UserID
	v, courseID, err := h.Store.LocateVideo(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Entitlements.ForCourse(ctx, userID, courseID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !entitlement.CanView(res, v.SectionID, v.IsPreview) {
		writeError(w, fmt.Errorf("video %s: %w", v.ID, courses.ErrLocked))
		return
	}

	p, err := h.Store.SaveProgress(ctx, next(userID, courseID, v))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CoursesHandler) enroll(w http.ResponseWriter, r *http.Request) {
	var in courses.CreateEnrollmentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := courses.Validate(in); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	e, existed, err := h.Store.CreateEnrollment(ctx, principalFrom(r.Context()).UserID, in.CourseID)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{"enrollment": e, "idempotent": existed})
}

func (h *CoursesHandler) listEnrollments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !principalFrom(r.Context()).CanActFor(userID) {
		writeMessage(w, http.StatusForbidden, "not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	page, err := h.Store.ListEnrollments(ctx, userID, pageParams(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CoursesHandler) enrollmentEntitlements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	enrollmentID := chi.URLParam(r, "id")
	res, err := h.Entitlements.ForEnrollment(ctx, enrollmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	// Other users' enrollments are reported as missing.
	if !principalFrom(r.Context()).CanActFor(res.UserID) {
		writeError(w, fmt.Errorf("enrollment %s: %w", enrollmentID, courses.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type recordPaymentResp struct {
	Payment    courses.Payment    `json:"payment"`
	Enrollment courses.Enrollment `json:"enrollment"`
	Idempotent bool               `json:"idempotent"`
}

func (h *CoursesHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var in courses.RecordPaymentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := courses.Validate(in); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	enrollmentID := chi.URLParam(r, "id")
	e, err := h.Store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principalFrom(r.Context()).CanActFor(e.UserID) {
		writeError(w, fmt.Errorf("enrollment %s: %w", enrollmentID, courses.ErrNotFound))
		return
	}

	pay, e, existed, err := h.Store.RecordPayment(ctx, enrollmentID, in.ExternalID, in.AmountCents)
	if err != nil {
		writeError(w, err)
		return
	}

	// A replay whose original request never marked the payment as announced
	// (crash between commit and publish) announces it now.
	if !existed || !h.announced(ctx, in.ExternalID) {
		h.afterPayment(ctx, pay, e, middleware.GetReqID(r.Context()))
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, recordPaymentResp{Payment: pay, Enrollment: e, Idempotent: existed})
}

func (h *CoursesHandler) announced(ctx context.Context, externalID string) bool {
	if h.Redis == nil {
		return true
	}
	ok, err := redisx.Exists(ctx, h.Redis, fmt.Sprintf(redisx.KeyIdemPayment, externalID))
	if err != nil {
		log.Printf("payment idempotency lookup %s: %v", externalID, err)
		return true
	}
	return ok
}

// afterPayment runs once the payment is committed: drop the cached
// entitlement, publish the event, then mark the external id as announced.
func (h *CoursesHandler) afterPayment(ctx context.Context, pay courses.Payment, e courses.Enrollment, traceID string) {
	if err := h.Entitlements.Invalidate(ctx, e.ID); err != nil {
		log.Printf("entitlement invalidate %s: %v", e.ID, err)
	}

	env, err := courses.NewEnvelope(courses.EventPaymentRecorded, h.Service, traceID, e.ID, courses.PaymentRecordedPayload{
		EnrollmentID:    e.ID,
		UserID:          e.UserID,
		CourseID:        e.CourseID,
		PaymentID:       pay.ID,
		ExternalID:      pay.ExternalID,
		AmountCents:     pay.AmountCents,
		AmountPaidCents: e.AmountPaidCents,
	})
	if err == nil {
		err = h.Events.Emit(env)
	}
	if err != nil {
		log.Printf("publish payment %s: %v", pay.ID, err)
		return
	}

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemPayment, pay.ExternalID)
		if err := h.Redis.Set(ctx, key, pay.ID, redisx.TTLIdempotency).Err(); err != nil {
			log.Printf("payment idempotency mark %s: %v", pay.ExternalID, err)
		}
	}
}

func (h *CoursesHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var in courses.UpdateStatusInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := courses.Validate(in); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	e, err := h.Store.SetEnrollmentStatus(ctx, chi.URLParam(r, "id"), in.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Entitlements.Invalidate(ctx, e.ID); err != nil {
		log.Printf("entitlement invalidate %s: %v", e.ID, err)
	}
	writeJSON(w, http.StatusOK, e)
}
