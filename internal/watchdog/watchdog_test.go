package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeHeartbeat struct {
	age int64 // nanoseconds, atomic
}

func (f *fakeHeartbeat) HeartbeatAge() time.Duration {
	return time.Duration(atomic.LoadInt64(&f.age))
}

func (f *fakeHeartbeat) set(d time.Duration) {
	atomic.StoreInt64(&f.age, int64(d))
}

func TestWatchdog_HealthyWhenAgeZero(t *testing.T) {
	src := &fakeHeartbeat{}
	w := New(src, time.Hour, time.Minute, nil)
	assert.True(t, w.Healthy())
}

func TestWatchdog_HealthyWithinTimeout(t *testing.T) {
	src := &fakeHeartbeat{}
	src.set(30 * time.Second)
	w := New(src, time.Hour, time.Minute, nil)
	assert.True(t, w.Healthy())
}

func TestWatchdog_UnhealthyPastTimeout(t *testing.T) {
	src := &fakeHeartbeat{}
	src.set(2 * time.Minute)
	w := New(src, time.Hour, time.Minute, nil)
	assert.False(t, w.Healthy())
}

func TestWatchdog_InvokesRecoveryCallbackOnceWhileStale(t *testing.T) {
	src := &fakeHeartbeat{}
	src.set(2 * time.Minute)

	var calls int32
	w := New(src, 10*time.Millisecond, time.Minute, func() {
		atomic.AddInt32(&calls, 1)
	})

	w.checkOnce()
	w.checkOnce()
	w.checkOnce()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWatchdog_ReArmsAfterRecovery(t *testing.T) {
	src := &fakeHeartbeat{}
	src.set(2 * time.Minute)

	var calls int32
	w := New(src, 10*time.Millisecond, time.Minute, func() {
		atomic.AddInt32(&calls, 1)
	})

	w.checkOnce()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	src.set(0)
	w.checkOnce()

	src.set(2 * time.Minute)
	w.checkOnce()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWatchdog_DefaultsApplyWhenZero(t *testing.T) {
	src := &fakeHeartbeat{}
	w := New(src, 0, 0, nil)
	assert.Equal(t, DefaultTickInterval, w.interval)
	assert.Equal(t, DefaultTimeout, w.timeout)
}

func TestWatchdog_StartStop(t *testing.T) {
	src := &fakeHeartbeat{}
	w := New(src, 5*time.Millisecond, time.Minute, nil)
	w.Start()
	time.Sleep(20 * time.Millisecond)
	w.Stop()
}
