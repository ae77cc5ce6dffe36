package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDepositEffectiveAt(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	confirmed := created.Add(2 * time.Hour)

	assert.Equal(t, created, Deposit{CreatedAt: created}.EffectiveAt())
	assert.Equal(t, confirmed, Deposit{CreatedAt: created, ConfirmedAt: &confirmed}.EffectiveAt())
}

func TestTaskSubmissionEffectiveAt(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	submitted := created.Add(time.Minute)
	reviewed := created.Add(time.Hour)

	tests := []struct {
		name string
		sub  TaskSubmission
		want time.Time
	}{
		{"reviewed", TaskSubmission{CreatedAt: created, SubmittedAt: submitted, ReviewedAt: &reviewed}, reviewed},
		{"not reviewed", TaskSubmission{CreatedAt: created, SubmittedAt: submitted}, submitted},
		{"bare row", TaskSubmission{CreatedAt: created}, created},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.EffectiveAt())
		})
	}
}

func TestDepositStatusCountsTowardBalance(t *testing.T) {
	assert.True(t, DepositStatusConfirmed.CountsTowardBalance())
	assert.False(t, DepositStatusPending.CountsTowardBalance())
	assert.False(t, DepositStatusRejected.CountsTowardBalance())
}
