package balance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return t0.Add(time.Duration(hours) * time.Hour)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dep(id uint, amount string, hours int) Entry {
	return Entry{ID: id, Amount: money(amount), At: at(hours)}
}

func wd(id uint, amount string, hours int) Entry {
	return Entry{ID: id, Amount: money(amount), At: at(hours)}
}

func reward(id uint, amount string, hours int) Reward {
	return Reward{SubmissionID: id, TaskID: id, Amount: money(amount), At: at(hours)}
}

func set(id uint, newBalance string, hours int) Adjustment {
	return Adjustment{ID: id, Operation: OperationSet, NewBalance: money(newBalance), At: at(hours)}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, money(want).StringFixed(2), got.StringFixed(2))
}

func TestComputeUnlockFee(t *testing.T) {
	tests := []struct {
		name     string
		deposits []Entry
		want     string
		feeLeft  string
	}{
		{name: "No deposits", deposits: nil, want: "0", feeLeft: "10"},
		{name: "Exactly the fee", deposits: []Entry{dep(1, "10", 0)}, want: "0", feeLeft: "0"},
		{name: "Single deposit above fee", deposits: []Entry{dep(1, "15", 0)}, want: "5", feeLeft: "0"},
		{name: "Fee spans two deposits", deposits: []Entry{dep(1, "6", 0), dep(2, "6", 1)}, want: "2", feeLeft: "0"},
		{name: "Below fee", deposits: []Entry{dep(1, "3.50", 0), dep(2, "4", 1)}, want: "0", feeLeft: "2.50"},
		{name: "After fee paid deposits count fully", deposits: []Entry{dep(1, "10", 0), dep(2, "25", 1), dep(3, "0.75", 2)}, want: "25.75", feeLeft: "0"},
		{name: "Input order does not matter", deposits: []Entry{dep(2, "6", 5), dep(1, "6", 1)}, want: "2", feeLeft: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Compute(History{Deposits: tt.deposits}, UnlockFee)
			assertMoney(t, tt.want, b.Balance)
			assertMoney(t, tt.want, b.DepositContribution)
			assertMoney(t, tt.feeLeft, b.UnlockFeeRemaining)
			assert.Nil(t, b.Checkpoint)
		})
	}
}

func TestComputeEmptyHistoryIsZero(t *testing.T) {
	b := Compute(History{}, UnlockFee)
	assert.True(t, b.Balance.IsZero())
	assert.True(t, b.BaseBalance.IsZero())
	assert.Empty(t, b.Skipped)
}

func TestComputeWithdrawals(t *testing.T) {
	h := History{Deposits: []Entry{dep(1, "50", 0)}}
	assertMoney(t, "40", Compute(h, UnlockFee).Balance)

	// A pending withdrawal reserves funds before it completes.
	h.Withdrawals = []Entry{wd(1, "20", 1)}
	b := Compute(h, UnlockFee)
	assertMoney(t, "20", b.Balance)
	assertMoney(t, "20", b.Withdrawn)
}

func TestComputeOverWithdrawnThenDepositStaysAtZero(t *testing.T) {
	h := History{Deposits: []Entry{dep(1, "50", 0)}}
	assertMoney(t, "40", Compute(h, UnlockFee).Balance)

	h.Withdrawals = []Entry{wd(1, "50", 1)}
	b := Compute(h, UnlockFee)
	assertMoney(t, "0", b.Balance)
	assert.False(t, b.Balance.IsNegative())

	// 60 deposited - 10 fee - 50 withdrawn.
	h.Deposits = append(h.Deposits, dep(2, "10", 2))
	assertMoney(t, "0", Compute(h, UnlockFee).Balance)
}

func TestComputeTaskRewards(t *testing.T) {
	h := History{
		Deposits: []Entry{dep(1, "10", 0)},
		Rewards:  []Reward{reward(1, "2.50", 1), reward(2, "7.50", 2)},
	}
	b := Compute(h, UnlockFee)
	assertMoney(t, "10", b.Balance)
	assertMoney(t, "10", b.TaskRewards)
}

func TestComputeSkipsBadRecords(t *testing.T) {
	h := History{
		Deposits:    []Entry{dep(1, "20", 0), dep(2, "-5", 1), dep(3, "0", 2)},
		Rewards:     []Reward{reward(1, "5", 1), {SubmissionID: 2, TaskID: 99, Missing: true, At: at(2)}, reward(3, "0", 3)},
		Withdrawals: []Entry{wd(1, "-100", 4)},
	}
	b := Compute(h, UnlockFee)
	assertMoney(t, "15", b.Balance)
	require.Len(t, b.Skipped, 5)
	assert.Equal(t, Skip{Kind: "task_submission", ID: 2, Reason: "task not found"}, b.Skipped[3])
}

func TestComputeAdminCheckpoint(t *testing.T) {
	tests := []struct {
		name    string
		history History
		want    string
		base    string
	}{
		{
			name: "Deposit after set is added to checkpoint",
			history: History{
				Deposits:    []Entry{dep(1, "50", -3), dep(2, "30", 1)},
				Withdrawals: []Entry{wd(1, "30", -2)},
				Adjustments: []Adjustment{set(1, "100", 0)},
			},
			want: "130",
			base: "40",
		},
		{
			name: "Task approved after set",
			history: History{
				Deposits:    []Entry{dep(1, "500", -5)},
				Withdrawals: []Entry{wd(1, "120", -4)},
				Rewards:     []Reward{reward(1, "40", -1), reward(2, "25", 1)},
				Adjustments: []Adjustment{set(1, "100", 0)},
			},
			want: "125",
			base: "435",
		},
		{
			name: "Unpaid fee carries across the checkpoint",
			history: History{
				Deposits:    []Entry{dep(1, "4", -1), dep(2, "10", 1)},
				Adjustments: []Adjustment{set(1, "0", 0)},
			},
			want: "4",
			base: "4",
		},
		{
			name: "Fee never paid before checkpoint",
			history: History{
				Deposits:    []Entry{dep(1, "25", 2)},
				Adjustments: []Adjustment{set(1, "5", 0)},
			},
			want: "20",
			base: "15",
		},
		{
			name: "Deposit at the checkpoint instant belongs before it",
			history: History{
				Deposits:    []Entry{dep(1, "30", 0)},
				Adjustments: []Adjustment{set(1, "70", 0)},
			},
			want: "70",
			base: "20",
		},
		{
			name: "Withdrawals after checkpoint clamp at zero",
			history: History{
				Deposits:    []Entry{dep(1, "100", -1)},
				Withdrawals: []Entry{wd(1, "80", 2)},
				Adjustments: []Adjustment{set(1, "50", 0)},
			},
			want: "0",
			base: "10",
		},
		{
			name: "Latest set wins",
			history: History{
				Adjustments: []Adjustment{set(2, "300", 2), set(1, "100", 0)},
				Rewards:     []Reward{reward(1, "5", 1), reward(2, "5", 3)},
			},
			want: "305",
			base: "10",
		},
		{
			name: "Latest add falls back to full history",
			history: History{
				Deposits: []Entry{dep(1, "60", -1)},
				Adjustments: []Adjustment{
					set(1, "1000", 0),
					{ID: 2, Operation: OperationAdd, Amount: money("5"), At: at(1)},
				},
			},
			want: "50",
			base: "50",
		},
		{
			name: "Same timestamp adjustments order by id",
			history: History{
				Adjustments: []Adjustment{
					{ID: 7, Operation: OperationAdd, Amount: money("1"), At: at(0)},
					set(9, "42", 0),
				},
			},
			want: "42",
			base: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Compute(tt.history, UnlockFee)
			assertMoney(t, tt.want, b.Balance)
			assertMoney(t, tt.base, b.BaseBalance)
		})
	}
}

func TestComputeCheckpointBreakdown(t *testing.T) {
	h := History{
		Deposits:    []Entry{dep(1, "8", -1), dep(2, "5", 1)},
		Rewards:     []Reward{reward(1, "3", 2)},
		Withdrawals: []Entry{wd(1, "1", 3)},
		Adjustments: []Adjustment{set(4, "20", 0)},
	}
	b := Compute(h, UnlockFee)

	require.NotNil(t, b.Checkpoint)
	assert.Equal(t, uint(4), b.Checkpoint.AdjustmentID)
	assert.True(t, b.Checkpoint.At.Equal(at(0)))
	assertMoney(t, "3", b.DepositContribution)
	assertMoney(t, "3", b.TaskRewards)
	assertMoney(t, "1", b.Withdrawn)
	assertMoney(t, "0", b.UnlockFeeRemaining)
	assertMoney(t, "25", b.Balance)
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	deposits := []Entry{dep(2, "6", 5), dep(1, "6", 1)}
	Compute(History{Deposits: deposits}, UnlockFee)
	assert.Equal(t, uint(2), deposits[0].ID)
}

func TestComputeCustomUnlockFee(t *testing.T) {
	b := Compute(History{Deposits: []Entry{dep(1, "15", 0)}}, decimal.Zero)
	assertMoney(t, "15", b.Balance)
}
