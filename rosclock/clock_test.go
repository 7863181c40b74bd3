package rosclock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/errors"
)

func TestNow_SystemTime(t *testing.T) {
	c := New(ClockTypeSystemTime)
	before := time.Now().UnixNano()
	now, err := c.Now()
	after := time.Now().UnixNano()

	require.NoError(t, err)
	assert.Equal(t, ClockTypeSystemTime, now.Type)
	assert.GreaterOrEqual(t, now.Nanoseconds, before)
	assert.LessOrEqual(t, now.Nanoseconds, after)
}

func TestNow_SteadyTimeMonotonic(t *testing.T) {
	c := New(ClockTypeSteadyTime)
	first, err := c.Now()
	require.NoError(t, err)
	second, err := c.Now()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.Nanoseconds, first.Nanoseconds)
}

func TestNow_Uninitialized(t *testing.T) {
	c := New(ClockTypeUninitialized)
	_, err := c.Now()
	require.Error(t, err)
	assert.True(t, errors.IsClockError(err))
}

func TestSetROSTimeOverride_OnlyROSTimeClock(t *testing.T) {
	for _, typ := range []ClockType{ClockTypeSystemTime, ClockTypeSteadyTime, ClockTypeUninitialized} {
		c := New(typ)
		err := c.SetROSTimeOverride(1000)
		require.Error(t, err, "clock type %s", typ)
		assert.True(t, errors.IsClockError(err))
	}
}

func TestROSTime_OverrideLifecycle(t *testing.T) {
	c := New(ClockTypeROSTime)

	// Inactive override: Now reports wall-clock time.
	require.NoError(t, c.SetROSTimeOverride(12345))
	now, err := c.Now()
	require.NoError(t, err)
	assert.Greater(t, now.Nanoseconds, int64(1e18), "expected wall-clock nanoseconds while inactive")

	change, err := c.SetROSTimeOverrideActive(true)
	require.NoError(t, err)
	assert.Equal(t, ROSTimeActivated, change)
	assert.True(t, c.ROSTimeActive())

	now, err = c.Now()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), now.Nanoseconds)

	change, err = c.SetROSTimeOverrideActive(false)
	require.NoError(t, err)
	assert.Equal(t, ROSTimeDeactivated, change)

	now, err = c.Now()
	require.NoError(t, err)
	assert.Greater(t, now.Nanoseconds, int64(1e18), "expected wall-clock nanoseconds after deactivation")
}

func TestSetROSTimeOverrideActive_NoChange(t *testing.T) {
	c := New(ClockTypeROSTime)

	change, err := c.SetROSTimeOverrideActive(false)
	require.NoError(t, err)
	assert.Equal(t, SystemTimeNoChange, change)

	_, err = c.SetROSTimeOverrideActive(true)
	require.NoError(t, err)

	change, err = c.SetROSTimeOverrideActive(true)
	require.NoError(t, err)
	assert.Equal(t, ROSTimeNoChange, change)
}

func TestJumpCallback_OrderAroundCommit(t *testing.T) {
	c := New(ClockTypeROSTime)
	require.NoError(t, c.SetROSTimeOverride(1000))
	_, err := c.SetROSTimeOverrideActive(true)
	require.NoError(t, err)

	var preTime, postTime int64
	c.AddJumpCallback(0,
		func(TimeJump) {
			now, err := c.Now()
			require.NoError(t, err)
			preTime = now.Nanoseconds
		},
		func(TimeJump) {
			now, err := c.Now()
			require.NoError(t, err)
			postTime = now.Nanoseconds
		})

	require.NoError(t, c.SetROSTimeOverride(5000))
	assert.Equal(t, int64(1000), preTime, "pre hook must observe the old time")
	assert.Equal(t, int64(5000), postTime, "post hook must observe the new time")
}

func TestJumpCallback_ThresholdGating(t *testing.T) {
	c := New(ClockTypeROSTime)
	require.NoError(t, c.SetROSTimeOverride(0))
	_, err := c.SetROSTimeOverrideActive(true)
	require.NoError(t, err)

	var small, large int
	c.AddJumpCallback(10*time.Nanosecond, nil, func(TimeJump) { small++ })
	c.AddJumpCallback(1*time.Second, nil, func(TimeJump) { large++ })

	require.NoError(t, c.SetROSTimeOverride(100)) // 100ns jump
	assert.Equal(t, 1, small)
	assert.Equal(t, 0, large)

	// Backward jumps count by magnitude.
	require.NoError(t, c.SetROSTimeOverride(50))
	assert.Equal(t, 2, small)
	assert.Equal(t, 0, large)
}

func TestJumpCallback_ActivationIgnoresThreshold(t *testing.T) {
	c := New(ClockTypeROSTime)

	var jumps []TimeJump
	c.AddJumpCallback(time.Hour, nil, func(j TimeJump) { jumps = append(jumps, j) })

	_, err := c.SetROSTimeOverrideActive(true)
	require.NoError(t, err)
	require.Len(t, jumps, 1, "activation must notify exactly once")
	assert.Equal(t, ROSTimeActivated, jumps[0].Kind)

	_, err = c.SetROSTimeOverrideActive(false)
	require.NoError(t, err)
	require.Len(t, jumps, 2, "deactivation must notify exactly once")
	assert.Equal(t, ROSTimeDeactivated, jumps[1].Kind)

	// No-change toggles notify nobody.
	_, err = c.SetROSTimeOverrideActive(false)
	require.NoError(t, err)
	assert.Len(t, jumps, 2)
}

func TestRemoveJumpCallback_FromWithinCallback(t *testing.T) {
	c := New(ClockTypeROSTime)

	var id int
	var calls int
	id = c.AddJumpCallback(0, nil, func(TimeJump) {
		calls++
		c.RemoveJumpCallback(id) // must not deadlock
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.SetROSTimeOverrideActive(true)
		_, _ = c.SetROSTimeOverrideActive(false)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("removal from within a jump callback deadlocked")
	}
	assert.Equal(t, 1, calls, "callback removed itself after the first delivery")
}

func TestRemoveJumpCallback_UnknownID(t *testing.T) {
	c := New(ClockTypeROSTime)
	c.RemoveJumpCallback(42) // no-op
}

func TestSetROSTimeOverride_ConcurrentJumpsSerialize(t *testing.T) {
	c := New(ClockTypeROSTime)
	_, err := c.SetROSTimeOverrideActive(true)
	require.NoError(t, err)

	var mu sync.Mutex
	depth := 0
	maxDepth := 0
	c.AddJumpCallback(0,
		func(TimeJump) {
			mu.Lock()
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
			mu.Unlock()
		},
		func(TimeJump) {
			mu.Lock()
			depth--
			mu.Unlock()
		})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.SetROSTimeOverride(int64(i*1000 + j))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxDepth, "jumps must not interleave")
}
