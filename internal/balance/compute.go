package balance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// UnlockFee is the amount of a user's lifetime confirmed deposits withheld
// to unlock task participation. Only the first UnlockFee of cumulative
// deposits is withheld; every later deposit dollar counts in full.
var UnlockFee = decimal.NewFromInt(10)

const (
	OperationSet = "set"
	OperationAdd = "add"
)

// Entry is a confirmed deposit or a funds-reserving withdrawal.
type Entry struct {
	ID     uint
	Amount decimal.Decimal
	At     time.Time
}

// Reward is an approved task submission joined to its task's reward.
// Missing is set when the task reference dangles or the reward is unusable.
type Reward struct {
	SubmissionID uint
	TaskID       uint
	Amount       decimal.Decimal
	At           time.Time
	Missing      bool
}

// Adjustment is an administrator override.
type Adjustment struct {
	ID         uint
	Operation  string
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
	At         time.Time
}

// History is everything a balance is derived from.
type History struct {
	Deposits    []Entry
	Rewards     []Reward
	Withdrawals []Entry
	Adjustments []Adjustment
}

// Checkpoint describes the admin "set" adjustment a balance was rebased on.
type Checkpoint struct {
	AdjustmentID uint            `json:"adjustment_id"`
	Balance      decimal.Decimal `json:"balance"`
	At           time.Time       `json:"at"`
}

// Skip records a history row that was ignored as a data-integrity problem.
type Skip struct {
	Kind   string `json:"kind"`
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

// Breakdown is the result of a balance computation with its intermediates.
// When Checkpoint is set, DepositContribution, TaskRewards and Withdrawn
// only cover activity strictly after the checkpoint.
type Breakdown struct {
	Balance             decimal.Decimal `json:"balance"`
	BaseBalance         decimal.Decimal `json:"base_balance"`
	DepositContribution decimal.Decimal `json:"deposit_contribution"`
	TaskRewards         decimal.Decimal `json:"task_rewards"`
	Withdrawn           decimal.Decimal `json:"withdrawn"`
	UnlockFeeRemaining  decimal.Decimal `json:"unlock_fee_remaining"`
	Checkpoint          *Checkpoint     `json:"checkpoint,omitempty"`
	Skipped             []Skip          `json:"skipped,omitempty"`
}

// Compute derives a balance from h. It is a pure function of its inputs.
func Compute(h History, unlockFee decimal.Decimal) Breakdown {
	var b Breakdown

	deposits := validEntries(h.Deposits, "deposit", &b.Skipped)
	withdrawals := validEntries(h.Withdrawals, "withdrawal", &b.Skipped)
	rewards := validRewards(h.Rewards, &b.Skipped)
	sortEntries(deposits)

	depositContribution, feeLeft := applyUnlockFee(deposits, unlockFee)
	taskRewards := sumRewards(rewards, time.Time{})
	withdrawn := sumEntries(withdrawals, time.Time{})

	b.BaseBalance = clamp(depositContribution.Add(taskRewards).Sub(withdrawn))

	latest := latestAdjustment(h.Adjustments)
	if latest == nil || latest.Operation != OperationSet {
		b.Balance = b.BaseBalance
		b.DepositContribution = depositContribution
		b.TaskRewards = taskRewards
		b.Withdrawn = withdrawn
		b.UnlockFeeRemaining = feeLeft
		return b
	}

	// Rebase on the checkpoint. The unlock fee carried into post-checkpoint
	// deposits is whatever the deposits up to and including T left unpaid.
	at := latest.At
	var before, after []Entry
	for _, d := range deposits {
		if d.At.After(at) {
			after = append(after, d)
		} else {
			before = append(before, d)
		}
	}
	_, feeAtCheckpoint := applyUnlockFee(before, unlockFee)
	ongoingDeposits, feeLeft := applyUnlockFee(after, feeAtCheckpoint)
	ongoingRewards := sumRewards(rewards, at)
	ongoingWithdrawn := sumEntries(withdrawals, at)

	b.Checkpoint = &Checkpoint{AdjustmentID: latest.ID, Balance: latest.NewBalance, At: at}
	b.DepositContribution = ongoingDeposits
	b.TaskRewards = ongoingRewards
	b.Withdrawn = ongoingWithdrawn
	b.UnlockFeeRemaining = feeLeft
	b.Balance = clamp(latest.NewBalance.Add(ongoingDeposits).Add(ongoingRewards).Sub(ongoingWithdrawn))
	return b
}

// applyUnlockFee walks deposits in order, withholding up to remaining of
// their cumulative amount, and returns what is credited plus the fee still
// unpaid afterwards.
func applyUnlockFee(deposits []Entry, remaining decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	contribution := decimal.Zero
	for _, d := range deposits {
		amount := d.Amount
		if remaining.IsPositive() {
			if amount.LessThanOrEqual(remaining) {
				remaining = remaining.Sub(amount)
				continue
			}
			amount = amount.Sub(remaining)
			remaining = decimal.Zero
		}
		contribution = contribution.Add(amount)
	}
	return contribution, remaining
}

// sumEntries adds the entries strictly after since; a zero since sums all.
func sumEntries(entries []Entry, since time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if since.IsZero() || e.At.After(since) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func sumRewards(rewards []Reward, since time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rewards {
		if since.IsZero() || r.At.After(since) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

func latestAdjustment(adjustments []Adjustment) *Adjustment {
	var latest *Adjustment
	for i := range adjustments {
		a := &adjustments[i]
		if latest == nil || a.At.After(latest.At) || (a.At.Equal(latest.At) && a.ID > latest.ID) {
			latest = a
		}
	}
	return latest
}

func validEntries(entries []Entry, kind string, skipped *[]Skip) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Amount.IsPositive() {
			*skipped = append(*skipped, Skip{Kind: kind, ID: e.ID, Reason: "non-positive amount"})
			continue
		}
		out = append(out, e)
	}
	return out
}

func validRewards(rewards []Reward, skipped *[]Skip) []Reward {
	out := make([]Reward, 0, len(rewards))
	for _, r := range rewards {
		switch {
		case r.Missing:
			*skipped = append(*skipped, Skip{Kind: "task_submission", ID: r.SubmissionID, Reason: "task not found"})
		case !r.Amount.IsPositive():
			*skipped = append(*skipped, Skip{Kind: "task_submission", ID: r.SubmissionID, Reason: "non-positive reward"})
		default:
			out = append(out, r)
		}
	}
	return out
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].At.Equal(entries[j].At) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].At.Before(entries[j].At)
	})
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
