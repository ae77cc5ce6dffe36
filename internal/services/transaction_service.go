package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/models"
	"time"
)

const defaultTransactionLimit = 10000

// TransactionFilter defines criteria for filtering transactions
type TransactionFilter struct {
	UserID    *uint
	Type      *models.TransactionType
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// FindTransactions retrieves ledger entries, newest first.
func FindTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	var transactions []models.Transaction

	query := database.DB.WithContext(ctx).Model(&models.Transaction{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if err := query.Order("created_at desc, id desc").Limit(limit).Find(&transactions).Error; err != nil {
		return nil, err
	}

	return transactions, nil
}

// GenerateTransactionCSV generates a CSV file content for transactions
func GenerateTransactionCSV(transactions []models.Transaction) ([]byte, error) {
	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{
		"ID", "Time", "User ID", "Type", "Amount",
		"Balance Before", "Balance After", "Reason",
		"Operator", "Hash",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, t := range transactions {
		record := []string{
			fmt.Sprintf("%d", t.ID),
			t.CreatedAt.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%d", t.UserID),
			string(t.Type),
			t.Amount.StringFixed(2),
			t.BalanceBefore.StringFixed(2),
			t.BalanceAfter.StringFixed(2),
			t.Reason,
			t.Operator,
			t.Hash,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// LedgerIssue is a ledger entry that failed verification.
type LedgerIssue struct {
	TransactionID uint
	Problem       string
}

// VerifyLedger checks every entry of a user's ledger for a valid hash and
// for continuity with the entry before it.
func VerifyLedger(ctx context.Context, userID uint) ([]LedgerIssue, error) {
	var transactions []models.Transaction
	if err := database.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&transactions).Error; err != nil {
		return nil, err
	}

	var issues []LedgerIssue
	for i, t := range transactions {
		if !t.VerifyHash(LedgerSecret) {
			issues = append(issues, LedgerIssue{TransactionID: t.ID, Problem: "hash mismatch"})
		}
		if !t.BalanceBefore.Add(t.Amount).Equal(t.BalanceAfter) {
			issues = append(issues, LedgerIssue{TransactionID: t.ID, Problem: "amount does not match balances"})
		}
		if i > 0 && !transactions[i-1].BalanceAfter.Equal(t.BalanceBefore) {
			issues = append(issues, LedgerIssue{
				TransactionID: t.ID,
				Problem:       fmt.Sprintf("balance before %s does not follow previous balance after %s", t.BalanceBefore.StringFixed(2), transactions[i-1].BalanceAfter.StringFixed(2)),
			})
		}
	}
	return issues, nil
}
