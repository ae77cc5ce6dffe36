package services

import (
	"context"
	"taskreward-backend/internal/balance"
	"taskreward-backend/internal/models"

	"gorm.io/gorm"
)

// gormSource reads balance history through db, which may be a transaction.
// Rows are filtered on status in SQL and on time in Go. Deposits and rewards
// are placed on the timeline when they took effect (confirmation, approval),
// withdrawals when they were requested.
type gormSource struct {
	db *gorm.DB
}

// NewBalanceSource returns a balance.Source backed by db.
func NewBalanceSource(db *gorm.DB) balance.Source {
	return &gormSource{db: db}
}

func (s *gormSource) UserExists(ctx context.Context, userID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormSource) ConfirmedDeposits(ctx context.Context, userID uint) ([]balance.Entry, error) {
	var deposits []models.Deposit
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.DepositStatusConfirmed).
		Order("id").
		Find(&deposits).Error
	if err != nil {
		return nil, err
	}

	entries := make([]balance.Entry, 0, len(deposits))
	for _, d := range deposits {
		entries = append(entries, balance.Entry{ID: d.ID, Amount: d.Amount, At: d.EffectiveAt()})
	}
	return entries, nil
}

func (s *gormSource) ApprovedRewards(ctx context.Context, userID uint) ([]balance.Reward, error) {
	var submissions []models.TaskSubmission
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SubmissionStatusApproved).
		Order("id").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	if len(submissions) == 0 {
		return nil, nil
	}

	taskIDs := make([]uint, 0, len(submissions))
	for _, sub := range submissions {
		taskIDs = append(taskIDs, sub.TaskID)
	}
	var tasks []models.Task
	if err := s.db.WithContext(ctx).Where("id IN ?", taskIDs).Find(&tasks).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	rewards := make([]balance.Reward, 0, len(submissions))
	for _, sub := range submissions {
		task, ok := byID[sub.TaskID]
		rewards = append(rewards, balance.Reward{
			SubmissionID: sub.ID,
			TaskID:       sub.TaskID,
			Amount:       task.Reward,
			At:           sub.EffectiveAt(),
			Missing:      !ok,
		})
	}
	return rewards, nil
}

func (s *gormSource) ReservedWithdrawals(ctx context.Context, userID uint) ([]balance.Entry, error) {
	var withdrawals []models.Withdrawal
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, models.ReservedWithdrawalStatuses).
		Order("id").
		Find(&withdrawals).Error
	if err != nil {
		return nil, err
	}

	entries := make([]balance.Entry, 0, len(withdrawals))
	for _, w := range withdrawals {
		entries = append(entries, balance.Entry{ID: w.ID, Amount: w.Amount, At: w.CreatedAt})
	}
	return entries, nil
}

func (s *gormSource) Adjustments(ctx context.Context, userID uint) ([]balance.Adjustment, error) {
	var adjustments []models.AdminAdjustment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&adjustments).Error; err != nil {
		return nil, err
	}

	out := make([]balance.Adjustment, 0, len(adjustments))
	for _, a := range adjustments {
		out = append(out, balance.Adjustment{
			ID:         a.ID,
			Operation:  string(a.Operation),
			Amount:     a.Amount,
			NewBalance: a.NewBalance,
			At:         a.CreatedAt,
		})
	}
	return out, nil
}
