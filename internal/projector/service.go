// Package projector keeps cached entitlements current as payments land and
// announces sections that a payment unlocked.
package projector

import (
	"context"
	"fmt"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-course-access/internal/courses"
	"github.com/ariefcatur/go-course-access/internal/entitlement"
	kafkax "github.com/ariefcatur/go-course-access/internal/kafka"
)

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Emitter interface {
	Emit(env courses.Envelope) error
}

type Service struct {
	Entitlements *entitlement.Service
	Dedup        Deduper
	Changed      Emitter // publishes enrollment.entitlement.changed
	ServiceName  string
}

// HandlePaymentRecorded is installed as the consumer handler for
// enrollment.payment.recorded.
func (s *Service) HandlePaymentRecorded(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// poison message: commit and move on
		log.Printf("projector: skip offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != courses.EventPaymentRecorded {
		return nil
	}

	claimed, err := s.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !claimed {
		return nil
	}

	if err := s.project(ctx, env); err != nil {
		if rerr := s.Dedup.Release(ctx, env.EventID); rerr != nil {
			log.Printf("projector: release %s: %v", env.EventID, rerr)
		}
		return err
	}
	return nil
}

func (s *Service) project(ctx context.Context, env courses.Envelope) error {
	p, err := kafkax.UnwrapPayload[courses.PaymentRecordedPayload](env.Payload)
	if err != nil {
		return err
	}

	res, err := s.Entitlements.Refresh(ctx, p.EnrollmentID)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", p.EnrollmentID, err)
	}

	// Compare against the same sections at the amount held before this payment.
	before := res.WithAmount(p.AmountPaidCents - p.AmountCents)
	newly := res.NewlyUnlocked(before)
	if len(newly) == 0 {
		return nil
	}

	out, err := courses.NewEnvelope(courses.EventEntitlementChanged, s.ServiceName, env.TraceID, p.EnrollmentID,
		courses.EntitlementChangedPayload{
			EnrollmentID:     res.EnrollmentID,
			UserID:           res.UserID,
			CourseID:         res.CourseID,
			AmountPaidCents:  res.AmountPaidCents,
			UnlockedSections: res.UnlockedIDs(),
			NewlyUnlocked:    newly,
		})
	if err != nil {
		return err
	}
	return s.Changed.Emit(out)
}
