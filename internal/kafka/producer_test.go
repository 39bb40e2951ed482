package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-course-access/internal/courses"
)

func testEnvelope(t *testing.T) courses.Envelope {
	t.Helper()
	env, err := courses.NewEnvelope(courses.EventPaymentRecorded, "test", "", "e1", struct{}{})
	require.NoError(t, err)
	return env
}

func TestEmitAfterCloseFails(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "t", 4)
	p.Close()
	p.Close()

	assert.NotPanics(t, func() {
		assert.ErrorIs(t, p.Emit(testEnvelope(t)), ErrProducerClosed)
	})
}

func TestEmitAfterContextEndFails(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "t", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)
	p.WaitClosed()

	// Without the stop check the first call is silently buffered and the second blocks.
	assert.ErrorIs(t, p.Emit(testEnvelope(t)), ErrProducerClosed)
	assert.ErrorIs(t, p.Emit(testEnvelope(t)), ErrProducerClosed)
	p.Close()
}
