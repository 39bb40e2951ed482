package courses

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to EnrollmentStatus
		want     bool
	}{
		{StatusPendingPaid, StatusActive, true},
		{StatusPendingPaid, StatusInactive, true},
		{StatusActive, StatusInactive, true},
		{StatusInactive, StatusActive, true},
		{StatusActive, StatusPendingPaid, false},
		{StatusInactive, StatusPendingPaid, false},
		{StatusActive, StatusActive, false},
		{"UNKNOWN", StatusActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestEnrollmentStatusValid(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusPendingPaid.Valid())
	assert.False(t, EnrollmentStatus("active").Valid())
}

func TestStatusForPayment(t *testing.T) {
	assert.Equal(t, StatusActive, StatusForPayment(0, 0, true))
	assert.Equal(t, StatusActive, StatusForPayment(0, 0, false))
	assert.Equal(t, StatusPendingPaid, StatusForPayment(999, 1000, true))
	assert.Equal(t, StatusActive, StatusForPayment(1000, 1000, true))
}
