package services

import (
	"context"
	"errors"
	"fmt"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/models"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrSubmissionNotFound = errors.New("task submission not found")
)

type CreateTaskRequest struct {
	Title  string          `validate:"required,max=200"`
	Reward decimal.Decimal `validate:"gt=0"`
}

// CreateTask defines a task users can be rewarded for
func CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	task := models.Task{Title: req.Title, Reward: req.Reward}
	if err := database.DB.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTaskByID retrieves a single task by ID
func GetTaskByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := database.DB.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

type SubmitTaskRequest struct {
	UserID      uint `validate:"required"`
	TaskID      uint `validate:"required"`
	SubmittedAt time.Time
}

// SubmitTask records a pending submission. Pending submissions do not
// affect the balance, so no balance cycle runs.
func SubmitTask(ctx context.Context, req SubmitTaskRequest) (*models.TaskSubmission, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := FindUserByID(req.UserID); err != nil {
		return nil, err
	}
	if _, err := GetTaskByID(ctx, req.TaskID); err != nil {
		return nil, err
	}

	submittedAt := req.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	submission := models.TaskSubmission{
		UserID:      req.UserID,
		TaskID:      req.TaskID,
		Status:      models.SubmissionStatusPending,
		SubmittedAt: submittedAt,
	}
	if err := database.DB.WithContext(ctx).Create(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// ApproveSubmission approves a pending submission and credits the task reward.
func ApproveSubmission(ctx context.Context, submissionID uint, operator string) (*models.TaskSubmission, error) {
	return reviewSubmission(ctx, submissionID, models.SubmissionStatusApproved, operator)
}

func RejectSubmission(ctx context.Context, submissionID uint, operator string) (*models.TaskSubmission, error) {
	return reviewSubmission(ctx, submissionID, models.SubmissionStatusRejected, operator)
}

func reviewSubmission(ctx context.Context, submissionID uint, to models.SubmissionStatus, operator string) (*models.TaskSubmission, error) {
	userID, err := ownerOf(ctx, &models.TaskSubmission{}, submissionID, ErrSubmissionNotFound)
	if err != nil {
		return nil, err
	}

	var submission models.TaskSubmission
	_, err = runBalanceCycle(ctx, userID, balanceChange{
		Type:     models.TransactionTypeTaskReward,
		Reason:   fmt.Sprintf("task submission #%d %s", submissionID, to),
		Operator: operator,
	}, func(tx *gorm.DB) error {
		if err := tx.First(&submission, submissionID).Error; err != nil {
			return err
		}
		if submission.Status != models.SubmissionStatusPending {
			return fmt.Errorf("%w: submission #%d is %s", ErrInvalidStatusTransition, submissionID, submission.Status)
		}

		now := time.Now()
		submission.Status = to
		submission.ReviewedAt = &now
		return tx.Model(&models.TaskSubmission{}).Where("id = ?", submissionID).Updates(map[string]interface{}{
			"status":      to,
			"reviewed_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &submission, nil
}
