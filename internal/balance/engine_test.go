package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memorySource struct {
	users   map[uint]History
	failOn  string
	readErr error
}

func (m *memorySource) fail(name string) error {
	if m.failOn == name {
		return m.readErr
	}
	return nil
}

func (m *memorySource) UserExists(_ context.Context, userID uint) (bool, error) {
	if err := m.fail("users"); err != nil {
		return false, err
	}
	_, ok := m.users[userID]
	return ok, nil
}

func (m *memorySource) ConfirmedDeposits(_ context.Context, userID uint) ([]Entry, error) {
	return m.users[userID].Deposits, m.fail("deposits")
}

func (m *memorySource) ApprovedRewards(_ context.Context, userID uint) ([]Reward, error) {
	return m.users[userID].Rewards, m.fail("rewards")
}

func (m *memorySource) ReservedWithdrawals(_ context.Context, userID uint) ([]Entry, error) {
	return m.users[userID].Withdrawals, m.fail("withdrawals")
}

func (m *memorySource) Adjustments(_ context.Context, userID uint) ([]Adjustment, error) {
	return m.users[userID].Adjustments, m.fail("adjustments")
}

func TestEngineComputeBalance(t *testing.T) {
	src := &memorySource{users: map[uint]History{
		1: {},
		2: {Deposits: []Entry{dep(1, "6", 0), dep(2, "6", 1)}},
		3: {
			Deposits:    []Entry{dep(1, "40", -2)},
			Adjustments: []Adjustment{set(1, "100", 0)},
			Rewards:     []Reward{reward(1, "25", 1)},
		},
	}}
	engine := NewEngine(src, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID uint
		want   string
	}{
		{name: "User without records", userID: 1, want: "0"},
		{name: "Fee split across deposits", userID: 2, want: "2"},
		{name: "Reward after checkpoint", userID: 3, want: "125"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.ComputeBalance(ctx, tt.userID)
			require.NoError(t, err)
			assertMoney(t, tt.want, got)

			again, err := engine.ComputeBalance(ctx, tt.userID)
			require.NoError(t, err)
			assert.True(t, got.Equal(again))
		})
	}
}

func TestEngineUnknownUser(t *testing.T) {
	engine := NewEngine(&memorySource{users: map[uint]History{}}, nil)

	_, err := engine.ComputeBalance(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEngineSourceErrors(t *testing.T) {
	boom := errors.New("connection reset")
	for _, name := range []string{"users", "deposits", "rewards", "withdrawals", "adjustments"} {
		t.Run(name, func(t *testing.T) {
			src := &memorySource{users: map[uint]History{1: {}}, failOn: name, readErr: boom}
			_, err := NewEngine(src, nil).ComputeBalance(context.Background(), 1)
			assert.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, ErrUserNotFound)
		})
	}
}

func TestEngineLogsDanglingTask(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := &memorySource{users: map[uint]History{
		5: {
			Deposits: []Entry{dep(1, "30", 0)},
			Rewards:  []Reward{{SubmissionID: 11, TaskID: 404, Missing: true, At: at(1)}},
		},
	}}

	b, err := NewEngine(src, zap.New(core)).Explain(context.Background(), 5)
	require.NoError(t, err)
	assertMoney(t, "20", b.Balance)

	entries := logs.FilterField(zap.Uint("id", 11)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "data integrity: record ignored in balance", entries[0].Message)
	assert.Equal(t, "task not found", entries[0].ContextMap()["reason"])
}
