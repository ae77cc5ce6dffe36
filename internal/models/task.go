package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionStatus defines the review state of a task submission
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Task is a unit of work users complete for a fixed reward.
type Task struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Title     string          `gorm:"not null" json:"title"`
	Reward    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"reward"`
}

// TableName overrides the table name
func (Task) TableName() string {
	return "tasks"
}

// TaskSubmission records a user's claim that a task was completed.
type TaskSubmission struct {
	ID          uint             `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	UserID      uint             `gorm:"index;not null" json:"user_id"`
	TaskID      uint             `gorm:"index;not null" json:"task_id"`
	Status      SubmissionStatus `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
}

// EffectiveAt is the instant an approved submission's reward takes effect:
// its review time, or the submission time for rows approved without one.
func (s TaskSubmission) EffectiveAt() time.Time {
	switch {
	case s.ReviewedAt != nil && !s.ReviewedAt.IsZero():
		return *s.ReviewedAt
	case !s.SubmittedAt.IsZero():
		return s.SubmittedAt
	}
	return s.CreatedAt
}
