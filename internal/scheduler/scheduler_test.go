package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCalculateNextDue(t *testing.T) {
	from := time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sched   domain.Schedule
		want    time.Time
		wantErr bool
	}{
		{
			name:  "cron",
			sched: domain.Schedule{CronExpr: "0 9 * * *"},
			want:  time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "descriptor",
			sched: domain.Schedule{CronExpr: "@hourly"},
			want:  time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "cron in timezone",
			sched: domain.Schedule{CronExpr: "0 9 * * *", Timezone: "Europe/Paris"},
			want:  time.Date(2024, 9, 2, 7, 0, 0, 0, time.UTC),
		},
		{
			name:  "interval",
			sched: domain.Schedule{IntervalSec: 90},
			want:  from.Add(90 * time.Second),
		},
		{
			name:  "cron wins over interval",
			sched: domain.Schedule{CronExpr: "*/15 * * * *", IntervalSec: 5},
			want:  time.Date(2024, 9, 1, 8, 45, 0, 0, time.UTC),
		},
		{name: "invalid cron", sched: domain.Schedule{CronExpr: "every day"}, wantErr: true},
		{name: "invalid timezone", sched: domain.Schedule{CronExpr: "@daily", Timezone: "Mars/Olympus"}, wantErr: true},
		{name: "empty", sched: domain.Schedule{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateNextDue(&tt.sched, from)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTick_RunsDueSchedules(t *testing.T) {
	c := &clock{t: time.Date(2024, 9, 1, 8, 59, 30, 0, time.UTC)}

	var runs []*domain.Run
	s := New(Config{
		Now: c.now,
		Runner: func(ctx context.Context, run *domain.Run, root *engine.Step) error {
			runs = append(runs, run)
			_, err := root.Run(ctx)
			return err
		},
	})

	builds := 0
	require.NoError(t, s.Add(domain.Schedule{Name: "morning", CronExpr: "0 9 * * *", Enabled: true}, func() (*engine.Step, error) {
		builds++
		return engine.New(nil).Named("morning"), nil
	}))

	// Ещё рано
	require.NoError(t, s.Tick(context.Background()))
	assert.Empty(t, runs)

	c.advance(30 * time.Second)
	require.NoError(t, s.Tick(context.Background()))
	require.Len(t, runs, 1)
	assert.Equal(t, "morning", runs[0].Scenario)
	assert.Equal(t, 1, builds)

	entry := s.Entries()[0]
	require.NotNil(t, entry.NextDueAt)
	assert.Equal(t, time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC), *entry.NextDueAt)
	require.NotNil(t, entry.LastRunID)
	assert.Equal(t, runs[0].ID, *entry.LastRunID)

	// Повторный тик в ту же минуту ничего не запускает
	require.NoError(t, s.Tick(context.Background()))
	assert.Len(t, runs, 1)
}

func TestTick_FailureDoesNotBlockOthers(t *testing.T) {
	c := &clock{t: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}

	var ran []string
	s := New(Config{
		Now: c.now,
		Runner: func(_ context.Context, run *domain.Run, _ *engine.Step) error {
			ran = append(ran, run.Scenario)
			if run.Scenario == "broken" {
				return errors.New("boom")
			}
			return nil
		},
	})

	require.NoError(t, s.Add(domain.Schedule{Name: "unbuildable", IntervalSec: 60, Enabled: true}, func() (*engine.Step, error) {
		return nil, errors.New("bad yaml")
	}))
	require.NoError(t, s.Add(domain.Schedule{Name: "broken", IntervalSec: 60, Enabled: true}, func() (*engine.Step, error) {
		return engine.New(nil), nil
	}))
	require.NoError(t, s.Add(domain.Schedule{Name: "healthy", IntervalSec: 60, Enabled: true}, func() (*engine.Step, error) {
		return engine.New(nil), nil
	}))

	c.advance(time.Minute)
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, []string{"broken", "healthy"}, ran)

	// Упавшие расписания тоже сдвигаются
	for _, e := range s.Entries() {
		require.NotNil(t, e.NextDueAt, e.Name)
		assert.Equal(t, c.t.Add(time.Minute), *e.NextDueAt, e.Name)
	}
}

func TestTick_NextDueAfterLongRun(t *testing.T) {
	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	c := &clock{t: start}

	s := New(Config{
		Now: c.now,
		Runner: func(context.Context, *domain.Run, *engine.Step) error {
			// Запуск длиннее двух интервалов
			c.advance(150 * time.Second)
			return nil
		},
	})
	require.NoError(t, s.Add(domain.Schedule{Name: "slow", IntervalSec: 60, Enabled: true}, func() (*engine.Step, error) {
		return engine.New(nil), nil
	}))

	c.advance(time.Minute)
	require.NoError(t, s.Tick(context.Background()))

	finished := start.Add(time.Minute + 150*time.Second)
	entry := s.Entries()[0]
	require.NotNil(t, entry.NextDueAt)
	assert.Equal(t, finished.Add(time.Minute), *entry.NextDueAt)
	assert.True(t, entry.NextDueAt.After(c.t))
}

func TestTick_DisabledScheduleIsSkipped(t *testing.T) {
	c := &clock{t: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)}
	called := false
	s := New(Config{
		Now: c.now,
		Runner: func(context.Context, *domain.Run, *engine.Step) error {
			called = true
			return nil
		},
	})
	require.NoError(t, s.Add(domain.Schedule{Name: "off", IntervalSec: 1}, func() (*engine.Step, error) {
		return engine.New(nil), nil
	}))

	c.advance(time.Hour)
	require.NoError(t, s.Tick(context.Background()))
	assert.False(t, called)
}

func TestAddScenario(t *testing.T) {
	s := New(Config{})

	err := s.AddScenario(func() (*engine.Step, error) {
		return engine.New(nil).Named("nightly").Schedule("@daily"), nil
	})
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "nightly", entries[0].Name)
	assert.Equal(t, "@daily", entries[0].CronExpr)
	assert.True(t, entries[0].Enabled)

	err = s.AddScenario(func() (*engine.Step, error) {
		return engine.New(nil).Named("adhoc"), nil
	})
	assert.ErrorContains(t, err, "no schedule")
}

func TestAdd_Validation(t *testing.T) {
	s := New(Config{})
	assert.Error(t, s.Add(domain.Schedule{Name: "x", CronExpr: "0 9 * * *"}, nil))
	assert.Error(t, s.Add(domain.Schedule{Name: "x", CronExpr: "nope"}, func() (*engine.Step, error) {
		return engine.New(nil), nil
	}))
	assert.Empty(t, s.Entries())
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(Config{Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
