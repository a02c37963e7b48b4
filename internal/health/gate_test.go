package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFailure_InvokesFailureHookEveryCall(t *testing.T) {
	g := New(5, time.Minute, nil)
	calls := 0
	g.SetFailureHook(func(provider string) {
		calls++
		assert.Equal(t, "p1", provider)
	})

	g.RecordFailure("p1", assertError())
	g.RecordFailure("p1", assertError())
	assert.Equal(t, 2, calls)
}

func TestRecordFailure_InvokesStateChangeHookOnlyOnTransition(t *testing.T) {
	g := New(2, time.Minute, nil)
	var states []int
	g.SetStateChangeHook(func(provider string, state int) {
		require.Equal(t, "p1", provider)
		states = append(states, state)
	})

	g.RecordFailure("p1", assertError())
	assert.Empty(t, states, "the first failure must not trip the breaker at threshold 2")

	g.RecordFailure("p1", assertError())
	require.Len(t, states, 1, "reaching the failure threshold must fire exactly one state-change event")
	assert.Equal(t, 2, states[0], "2 is the documented open-circuit gauge value")

	g.RecordFailure("p1", assertError())
	assert.Len(t, states, 1, "staying open on a further failure must not re-fire the hook")
}

func TestRecordSuccess_InvokesStateChangeHookOnlyWhenClosingFromOpen(t *testing.T) {
	g := New(1, time.Minute, nil)
	var states []int
	g.SetStateChangeHook(func(provider string, state int) {
		states = append(states, state)
	})

	g.RecordFailure("p1", assertError())
	require.Len(t, states, 1)
	assert.Equal(t, 2, states[0])

	g.RecordSuccess("p1", 10)
	require.Len(t, states, 2)
	assert.Equal(t, 0, states[1], "0 is the documented closed-circuit gauge value")
}

func assertError() error {
	return &testError{"boom"}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
