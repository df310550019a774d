package cellgraph_test

import (
	"errors"
	"fmt"
	"log"
	"testing"

	"github.com/delaneyj/cellgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicEffect(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	a := cellgraph.Cell(rs, 1)
	b := cellgraph.Derived(rs, func() int {
		return a.Value() * 2
	})

	runs := 0
	seen := 0
	_, err := cellgraph.Effect(rs, func() error {
		seen = b.Value()
		runs++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 2, seen)

	require.NoError(t, a.Set(3))
	assert.Equal(t, 2, runs)
	assert.Equal(t, 6, seen)
}

// should clear subscriptions when untracked by all subscribers
func TestEffectClearSubsWhenUntracked(t *testing.T) {
	bRunTimes := 0

	rs := cellgraph.NewReactiveSystem()
	a := cellgraph.Cell(rs, 1)
	b := cellgraph.Derived(rs, func() int {
		bRunTimes++
		return a.Value() * 2
	})
	e, err := cellgraph.Effect(rs, func() error {
		b.Value()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, bRunTimes)
	a.Set(2)
	assert.Equal(t, 2, bRunTimes)
	e.Dispose()
	a.Set(3)
	assert.Equal(t, 2, bRunTimes)
}

// should not run untracked inner effect
func TestShouldNotRunUntrackedInnerEffect(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()
	a := cellgraph.Cell(rs, 3)
	b := cellgraph.Derived(rs, func() bool {
		return a.Value() > 0
	})

	cellgraph.Effect(rs, func() error {
		if b.Value() {
			cellgraph.Effect(rs, func() error {
				if a.Value() == 0 {
					assert.Fail(t, "bad")
				}
				return nil
			})
		}
		return nil
	})

	decrement := func() {
		a.Set(a.Value() - 1)
	}
	decrement()
	decrement()
	decrement()
}

// should run outer effect first
func TestShouldRunOuterEffectFirst(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()
	a := cellgraph.Cell(rs, 1)
	b := cellgraph.Cell(rs, 1)

	cellgraph.Effect(rs, func() error {
		aV := a.Value()
		if aV != 0 {
			cellgraph.Effect(rs, func() error {
				aV, bV := a.Value(), b.Value()
				log.Printf("aV: %d, bV: %d", aV, bV)
				if aV == 0 {
					assert.Fail(t, "bad")
				}
				return nil
			})
		}
		return nil
	})

	rs.StartBatch()
	a.Set(0)
	b.Set(0)
	require.NoError(t, rs.EndBatch())
}

// should not trigger inner effect when resolve maybe dirty
func TestShouldNotTriggerInnerEffectWhenResolveMaybeDirty(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()
	a := cellgraph.Cell(rs, 0)
	b := cellgraph.Derived(rs, func() bool {
		return a.Value()%2 == 0
	})

	innerTriggerTimes := 0

	cellgraph.Effect(rs, func() error {
		cellgraph.Effect(rs, func() error {
			b.Value()
			innerTriggerTimes++
			if innerTriggerTimes >= 2 {
				assert.Fail(t, "bad")
			}
			return nil
		})
		return nil
	})

	a.Set(2)
}

// should trigger inner effects in sequence
func TestShouldTriggerInnerEffectsInSequence(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()
	a := cellgraph.Cell(rs, 0)
	b := cellgraph.Cell(rs, 0)
	c := cellgraph.Derived(rs, func() int {
		return a.Value() - b.Value()
	})
	order := []string{}

	cellgraph.Effect(rs, func() error {
		c.Value()

		cellgraph.Effect(rs, func() error {
			order = append(order, "first inner")
			a.Value()
			return nil
		})

		cellgraph.Effect(rs, func() error {
			order = append(order, "last inner")
			a.Value()
			b.Value()
			return nil
		})

		return nil
	})

	order = order[:0]
	rs.StartBatch()
	a.Set(1)
	b.Set(1)
	require.NoError(t, rs.EndBatch())

	assert.Equal(t, []string{"first inner", "last inner"}, order)
}

// should trigger inner effects in sequence in a scope
func TestShouldTriggerInnerEffectsInSequenceInScope(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()
	a := cellgraph.Cell(rs, 0)
	b := cellgraph.Cell(rs, 0)
	order := []string{}

	cellgraph.NewScope(rs, func() {
		cellgraph.Effect(rs, func() error {
			order = append(order, "first inner")
			a.Value()
			return nil
		})

		cellgraph.Effect(rs, func() error {
			order = append(order, "last inner")
			a.Value()
			b.Value()
			return nil
		})
	})

	order = order[:0]
	rs.StartBatch()
	a.Set(1)
	b.Set(1)
	require.NoError(t, rs.EndBatch())

	assert.Equal(t, []string{"first inner", "last inner"}, order)
}

// should custom effect support batch
func TestShouldCustomEffectSupportBatch(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	batchEffect := func(fn func() error) *cellgraph.EffectRunner {
		e, _ := cellgraph.Effect(rs, func() error {
			rs.StartBatch()
			defer rs.EndBatch()
			return fn()
		})
		return e
	}

	logs := []string{}
	a := cellgraph.Cell(rs, 0)
	b := cellgraph.Cell(rs, 0)

	aa := cellgraph.Derived(rs, func() int {
		logs = append(logs, "aa-0")
		if a.Value() == 0 {
			b.Set(1)
		}
		logs = append(logs, "aa-1")
		return 0
	})

	bb := cellgraph.Derived(rs, func() int {
		logs = append(logs, "bb")
		return b.Value()
	})

	batchEffect(func() error {
		bb.Value()
		return nil
	})

	batchEffect(func() error {
		aa.Value()
		return nil
	})

	assert.Equal(t, []string{"bb", "aa-0", "aa-1", "bb"}, logs)
}

// should not trigger after stop
func TestShouldNotTriggerAfterStop(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	count := cellgraph.Cell(rs, 0)

	triggers := 0

	scope := cellgraph.NewScope(rs, func() {
		cellgraph.Effect(rs, func() error {
			triggers++
			count.Value()
			return nil
		})
	})

	assert.Equal(t, 1, triggers)
	count.Set(2)
	assert.Equal(t, 2, triggers)
	scope.Dispose()
	count.Set(3)
	assert.Equal(t, 2, triggers)
}

// should run cleanups before the next run and once more on disposal
func TestShouldRunCleanupsBeforeRerunAndOnDispose(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	a := cellgraph.Cell(rs, 0)
	cleaned := []string{}

	e, err := cellgraph.Effect(rs, func() error {
		v := a.Value()
		cellgraph.OnCleanup(rs, func() {
			cleaned = append(cleaned, fmt.Sprintf("cleanup %d", v))
		})
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, cleaned)

	require.NoError(t, a.Set(1))
	assert.Equal(t, []string{"cleanup 0"}, cleaned)

	e.Dispose()
	assert.Equal(t, []string{"cleanup 0", "cleanup 1"}, cleaned)

	// disposal already drained the cleanups
	e.Dispose()
	assert.Equal(t, []string{"cleanup 0", "cleanup 1"}, cleaned)
}

// should panic when registering a cleanup outside a subscriber
func TestShouldPanicOnCleanupOutsideSubscriber(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	assert.PanicsWithError(t, cellgraph.ErrNoSubscriber.Error(), func() {
		cellgraph.OnCleanup(rs, func() {})
	})
}

// should not track reads made inside a cleanup
func TestShouldNotTrackCleanupReads(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	a := cellgraph.Cell(rs, 0)
	other := cellgraph.Cell(rs, 100)

	runs := 0
	_, err := cellgraph.Effect(rs, func() error {
		a.Value()
		cellgraph.OnCleanup(rs, func() {
			other.Value()
		})
		runs++
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, a.Set(1))
	assert.Equal(t, 2, runs)

	// the cleanup read "other" but that must not subscribe the effect to it
	require.NoError(t, other.Set(200))
	assert.Equal(t, 2, runs)
}

// should give a custom scheduler first refusal on re-runs
func TestShouldDeferRerunsToCustomScheduler(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	a := cellgraph.Cell(rs, 0)

	deferred := []*cellgraph.EffectRunner{}
	runs := 0
	_, err := cellgraph.Effect(rs, func() error {
		a.Value()
		runs++
		return nil
	}, cellgraph.EffectScheduler(func(e *cellgraph.EffectRunner) bool {
		deferred = append(deferred, e)
		return true
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, runs)

	// the write marks the effect but the scheduler holds the re-run
	require.NoError(t, a.Set(1))
	assert.Equal(t, 1, runs)
	require.Len(t, deferred, 1)

	require.NoError(t, deferred[0].Run())
	assert.Equal(t, 2, runs)

	// a re-run without a fresh upstream change resolves to a no-op
	require.NoError(t, deferred[0].Run())
	assert.Equal(t, 2, runs)
}

// should deliver a write to the remaining subscribers when a scheduler
// re-runs its effect synchronously and the re-run drops the written cell
func TestShouldReachSiblingsDespiteSynchronousScheduler(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	a := cellgraph.Cell(rs, 1)
	b := cellgraph.Cell(rs, 10)

	firstRuns := 0
	_, err := cellgraph.Effect(rs, func() error {
		firstRuns++
		if firstRuns == 1 {
			a.Value()
		} else {
			b.Value()
		}
		return nil
	}, cellgraph.EffectScheduler(func(e *cellgraph.EffectRunner) bool {
		require.NoError(t, e.Run())
		return true
	}))
	require.NoError(t, err)

	secondRuns := 0
	secondSeen := 0
	_, err = cellgraph.Effect(rs, func() error {
		secondSeen = a.Value()
		secondRuns++
		return nil
	})
	require.NoError(t, err)

	// the first effect switches from a to b mid-flush; the second must still
	// see the write
	require.NoError(t, a.Set(2))
	assert.Equal(t, 2, firstRuns)
	assert.Equal(t, 2, secondRuns)
	assert.Equal(t, 2, secondSeen)

	require.NoError(t, b.Set(11))
	assert.Equal(t, 3, firstRuns)
	assert.Equal(t, 2, secondRuns)

	// a no longer reaches the first effect
	require.NoError(t, a.Set(3))
	assert.Equal(t, 3, firstRuns)
	assert.Equal(t, 3, secondRuns)
}

// should consult the scheduler once per write, even through a derived
func TestShouldConsultSchedulerOncePerWrite(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	a := cellgraph.Cell(rs, 1)
	double := cellgraph.Derived(rs, func() int {
		return a.Value() * 2
	})

	consults := 0
	runs := 0
	_, err := cellgraph.Effect(rs, func() error {
		double.Value()
		runs++
		return nil
	}, cellgraph.EffectScheduler(func(*cellgraph.EffectRunner) bool {
		consults++
		return false
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, consults)

	require.NoError(t, a.Set(2))
	assert.Equal(t, 1, consults)
	assert.Equal(t, 2, runs)

	// an unchanged recompute never reaches the scheduler
	require.NoError(t, a.Set(2))
	assert.Equal(t, 1, consults)
	assert.Equal(t, 2, runs)
}

// should hold further offers while the scheduler owns a pending re-run
func TestShouldNotReofferWhileSchedulerHoldsRerun(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	a := cellgraph.Cell(rs, 1)

	consults := 0
	seen := 0
	var held *cellgraph.EffectRunner
	e, err := cellgraph.Effect(rs, func() error {
		seen = a.Value()
		return nil
	}, cellgraph.EffectScheduler(func(e *cellgraph.EffectRunner) bool {
		consults++
		held = e
		return true
	}))
	require.NoError(t, err)

	require.NoError(t, a.Set(2))
	require.NoError(t, a.Set(3))
	assert.Equal(t, 1, consults)
	assert.Equal(t, 1, seen)

	// the held re-run picks up the latest value, and the next write is a
	// fresh offer
	require.NoError(t, held.Run())
	assert.Equal(t, 3, seen)
	require.NoError(t, a.Set(4))
	assert.Equal(t, 2, consults)

	require.NoError(t, e.Run())
	assert.Equal(t, 4, seen)
}

// should return the body's error to whichever write triggered the flush
func TestShouldReturnEffectErrorsToTriggeringWrite(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	boom := errors.New("boom")
	a := cellgraph.Cell(rs, 0)

	_, err := cellgraph.Effect(rs, func() error {
		if a.Value() > 0 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)

	err = a.Set(1)
	assert.ErrorIs(t, err, boom)
}

// should keep draining the queue after a failing effect
func TestShouldKeepDrainingAfterEffectError(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	first := errors.New("first")
	second := errors.New("second")
	a := cellgraph.Cell(rs, 0)

	ranSecond := 0
	cellgraph.Effect(rs, func() error {
		if a.Value() > 0 {
			return first
		}
		return nil
	})
	cellgraph.Effect(rs, func() error {
		if a.Value() > 1 {
			return second
		}
		ranSecond++
		return nil
	})

	err := rs.Batch(func() error {
		a.Set(2)
		return nil
	})
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Equal(t, 1, ranSecond)
}

// should report the construction run's error from Effect itself
func TestShouldReturnConstructionError(t *testing.T) {
	rs := cellgraph.NewReactiveSystem()

	boom := errors.New("boom")
	a := cellgraph.Cell(rs, 1)

	e, err := cellgraph.Effect(rs, func() error {
		a.Value()
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// still subscribed to what it read before failing
	runs := 0
	e.Dispose()
	cellgraph.Effect(rs, func() error {
		a.Value()
		runs++
		return nil
	})
	require.NoError(t, a.Set(2))
	assert.Equal(t, 2, runs)
}
