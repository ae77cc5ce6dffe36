package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"sync"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/models"
	"taskreward-backend/pkg/logger"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AuditOptions struct {
	// Fix reconciles every drifted user through ReconcileUserBalance.
	Fix      bool
	Workers  int
	Operator string
}

// Drift is a user whose cached balance differs from the derived one.
type Drift struct {
	UserID   uint            `json:"user_id"`
	Username string          `json:"username"`
	Cached   decimal.Decimal `json:"cached"`
	Derived  decimal.Decimal `json:"derived"`
	Fixed    bool            `json:"fixed"`
	Error    string          `json:"error,omitempty"`
}

type AuditReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	Drifted    []Drift   `json:"drifted"`
	Failed     []Drift   `json:"failed,omitempty"`
}

// AuditBalances compares every user's cached balance with the derived one.
// Users are checked in parallel; a failure for one user is recorded in the
// report and does not stop the others.
func AuditBalances(ctx context.Context, opts AuditOptions) (*AuditReport, error) {
	report := &AuditReport{RunID: uuid.New().String(), StartedAt: time.Now()}
	log := logger.L().With(zap.String("run_id", report.RunID))

	var users []models.User
	if err := database.DB.WithContext(ctx).Select("id", "username", "balance").Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	report.Checked = len(users)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	operator := opts.Operator
	if operator == "" {
		operator = "audit"
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, u := range users {
		u := u
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			d := Drift{UserID: u.ID, Username: u.Username, Cached: u.Balance}
			derived, err := ComputeUserBalance(egCtx, u.ID)
			if err != nil {
				d.Error = err.Error()
				log.Error("audit: compute failed", zap.Uint("user_id", u.ID), zap.Error(err))
				mu.Lock()
				report.Failed = append(report.Failed, d)
				mu.Unlock()
				return nil
			}
			d.Derived = derived.Round(2)
			if d.Cached.Equal(d.Derived) {
				return nil
			}

			log.Warn("audit: cached balance drifted",
				zap.Uint("user_id", u.ID),
				zap.String("cached", d.Cached.StringFixed(2)),
				zap.String("derived", d.Derived.StringFixed(2)),
			)
			if opts.Fix {
				if _, err := ReconcileUserBalance(egCtx, u.ID, operator); err != nil {
					d.Error = err.Error()
					log.Error("audit: reconcile failed", zap.Uint("user_id", u.ID), zap.Error(err))
				} else {
					d.Fixed = true
				}
			}

			mu.Lock()
			report.Drifted = append(report.Drifted, d)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Drifted, func(i, j int) bool { return report.Drifted[i].UserID < report.Drifted[j].UserID })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].UserID < report.Failed[j].UserID })
	report.FinishedAt = time.Now()

	log.Info("audit finished",
		zap.Int("checked", report.Checked),
		zap.Int("drifted", len(report.Drifted)),
		zap.Int("failed", len(report.Failed)),
		zap.Bool("fix", opts.Fix),
	)
	return report, nil
}

// GenerateAuditCSV renders the drifted users of a report.
func GenerateAuditCSV(report *AuditReport) ([]byte, error) {
	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	if err := w.Write([]string{"User ID", "Username", "Cached", "Derived", "Difference", "Fixed", "Error"}); err != nil {
		return nil, err
	}
	for _, d := range report.Drifted {
		record := []string{
			fmt.Sprintf("%d", d.UserID),
			d.Username,
			d.Cached.StringFixed(2),
			d.Derived.StringFixed(2),
			d.Derived.Sub(d.Cached).StringFixed(2),
			fmt.Sprintf("%t", d.Fixed),
			d.Error,
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
