package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_OrderAndCount(t *testing.T) {
	root := New(newFake())
	root.Wait(0).Wait(0).Wait(0)

	var events []string
	n := 0
	root.BeforeStep(func(_ context.Context, s *Step, _ any) error {
		n++
		events = append(events, fmt.Sprintf("before:%s:%d", s.Name(), n))
		return nil
	})
	root.AfterStep(func(_ context.Context, s *Step, _ any, res StepResult) error {
		events = append(events, fmt.Sprintf("after:%s:%d", s.Name(), n))
		assert.True(t, res.Success)
		assert.GreaterOrEqual(t, res.ExecutionTime.Nanoseconds(), int64(0))
		return nil
	})

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"before:wait:1", "after:wait:1",
		"before:wait:2", "after:wait:2",
		"before:wait:3", "after:wait:3",
	}, events)
}

func TestHooks_RegistrationOrder(t *testing.T) {
	root := New(nil)
	root.Tap(func(*Step) {})

	var events []string
	for _, name := range []string{"first", "second"} {
		root.BeforeStep(func(context.Context, *Step, any) error {
			events = append(events, "before:"+name)
			return nil
		})
		root.AfterStep(func(context.Context, *Step, any, StepResult) error {
			events = append(events, "after:"+name)
			return nil
		})
	}

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"before:first", "before:second", "after:first", "after:second"}, events)
}

func TestHooks_ReceiveContextAndOutput(t *testing.T) {
	root := New(newFake()).SetContext("seed")
	root.Actor("alice")

	var (
		gotCtx any
		gotRes StepResult
	)
	root.BeforeStep(func(_ context.Context, _ *Step, stepCtx any) error {
		gotCtx = stepCtx
		return nil
	})
	root.AfterStep(func(_ context.Context, _ *Step, _ any, res StepResult) error {
		gotRes = res
		return nil
	})

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "seed", gotCtx)
	assert.True(t, gotRes.Success)
	assert.Equal(t, "did:plc:alice", gotRes.Output.(map[string]any)["did"])
}

func TestHooks_AfterStepOnFailure(t *testing.T) {
	boom := errors.New("boom")
	root := New(nil)
	root.Tap(func(*Step) error { return boom })

	var results []StepResult
	root.AfterStep(func(_ context.Context, _ *Step, _ any, res StepResult) error {
		results = append(results, res)
		return nil
	})

	_, err := root.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Err, boom)
}

func TestHooks_ErrorAbortsRun(t *testing.T) {
	boom := errors.New("hook failed")

	t.Run("before", func(t *testing.T) {
		root := New(nil)
		var ran bool
		root.Tap(func(*Step) { ran = true })
		root.BeforeStep(func(context.Context, *Step, any) error { return boom })

		_, err := root.Run(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.False(t, ran)
	})

	t.Run("after", func(t *testing.T) {
		root := New(nil)
		var second bool
		root.Tap(func(*Step) {})
		root.Tap(func(*Step) { second = true })
		root.AfterStep(func(context.Context, *Step, any, StepResult) error { return boom })

		_, err := root.Run(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.False(t, second)
	})

	t.Run("after joins step error", func(t *testing.T) {
		stepErr := errors.New("step failed")
		root := New(nil)
		root.Tap(func(*Step) error { return stepErr })
		root.AfterStep(func(context.Context, *Step, any, StepResult) error { return boom })

		_, err := root.Run(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, stepErr)
	})
}

func TestHooks_Clear(t *testing.T) {
	root := New(nil)
	root.Tap(func(*Step) {})

	var calls int
	root.BeforeStep(func(context.Context, *Step, any) error {
		calls++
		return nil
	})
	root.ClearHooks()

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, calls)
}

type countingHooks struct {
	before, after int
}

func (h *countingHooks) BeforeStep(context.Context, *Step, any) error {
	h.before++
	return nil
}

func (h *countingHooks) AfterStep(context.Context, *Step, any, StepResult) error {
	h.after++
	return nil
}

func TestHooks_Use(t *testing.T) {
	root := New(nil)
	root.Tap(func(*Step) {}).Tap(func(*Step) {})

	h := &countingHooks{}
	root.Use(h)

	_, err := root.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, h.before)
	assert.Equal(t, 2, h.after)
}
