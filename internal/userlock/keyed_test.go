package userlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestKeyedMutexSerializesSameUser(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKeyedMutex()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), 7)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Equal(t, 0, k.Len())
}

func TestKeyedMutexIndependentUsers(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKeyedMutex()
	unlockA, err := k.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, k.Len())

	unlockB()
	unlockA()
	unlockA() // idempotent
	assert.Equal(t, 0, k.Len())
}

func TestKeyedMutexContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Equal(t, 0, k.Len())
}

type recordingLocker struct {
	name string
	log  *[]string
	err  error
}

func (r recordingLocker) Lock(_ context.Context, _ uint) (func(), error) {
	if r.err != nil {
		return nil, r.err
	}
	*r.log = append(*r.log, "lock "+r.name)
	return func() { *r.log = append(*r.log, "unlock "+r.name) }, nil
}

func TestChainOrder(t *testing.T) {
	var log []string
	c := Chain{recordingLocker{name: "a", log: &log}, nil, recordingLocker{name: "b", log: &log}}

	unlock, err := c.Lock(context.Background(), 1)
	require.NoError(t, err)
	unlock()
	unlock()

	assert.Equal(t, []string{"lock a", "lock b", "unlock b", "unlock a"}, log)
}

func TestChainReleasesOnFailure(t *testing.T) {
	var log []string
	c := Chain{
		recordingLocker{name: "a", log: &log},
		recordingLocker{name: "b", log: &log, err: context.Canceled},
	}

	_, err := c.Lock(context.Background(), 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"lock a", "unlock a"}, log)
}
