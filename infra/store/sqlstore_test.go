package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cheaphours/core/model"
	corestore "github.com/kilianp07/cheaphours/core/store"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(Config{Driver: DriverSQLite, DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", name)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRule(id string) model.Rule {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return model.Rule{
		ID: id, DeviceID: "boiler", Name: "water", MaxHours: 3, MinContinuousHours: 1,
		WindowStart: model.Hour(20), DaysOfWeek: model.AllDays, Enabled: true,
		CreatedAt: now, UpdatedAt: now,
	}
}

func action(id, ruleID string, date time.Time, hour int, status model.ActionStatus) model.ScheduledAction {
	p := 0.1
	return model.ScheduledAction{
		ID: id, RuleID: ruleID, Date: date, StartHour: hour, EndHour: model.EndHourOf(hour),
		Price: &p, Status: status, CreatedAt: date,
	}
}

func TestRuleCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := testRule("r1")
	require.NoError(t, s.CreateRule(ctx, r))
	if err := s.CreateRule(ctx, r); !errors.Is(err, corestore.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := s.GetRule(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 20, *got.WindowStart)
	assert.Nil(t, got.WindowEnd)
	assert.True(t, got.Enabled)
	assert.Equal(t, r.CreatedAt, got.CreatedAt)

	got.Enabled = false
	got.WindowEnd = model.Hour(6)
	require.NoError(t, s.UpdateRule(ctx, got))
	enabled, err := s.ListRules(ctx, corestore.RuleFilter{EnabledOnly: true})
	require.NoError(t, err)
	assert.Empty(t, enabled)
	all, err := s.ListRules(ctx, corestore.RuleFilter{DeviceID: "boiler"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 6, *all[0].WindowEnd)

	require.NoError(t, s.DeleteRule(ctx, "r1"))
	if _, err := s.GetRule(ctx, "r1"); !errors.Is(err, corestore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteRule(ctx, "r1"); !errors.Is(err, corestore.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestReplacePendingIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	batch := []model.ScheduledAction{
		action("a1", "r1", date, 2, model.StatusPending),
		action("a2", "r1", date, 3, model.StatusPending),
	}
	deleted, created, err := s.ReplacePending(ctx, "r1", date, 0, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
	assert.Equal(t, 2, created)

	again := []model.ScheduledAction{
		action("b1", "r1", date, 2, model.StatusPending),
		action("b2", "r1", date, 3, model.StatusPending),
	}
	deleted, created, err = s.ReplacePending(ctx, "r1", date, 0, again)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 2, created)

	list, err := s.ListActions(ctx, corestore.ActionFilter{Date: date, RuleID: "r1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b1", list[0].ID)
	assert.InDelta(t, 0.1, *list[0].Price, 1e-9)
}

func TestReplacePendingKeepsPastAndTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	_, _, err := s.ReplacePending(ctx, "r1", date, 0, []model.ScheduledAction{
		action("past", "r1", date, 8, model.StatusPending),
		action("done", "r1", date, 15, model.StatusPending),
		action("future", "r1", date, 18, model.StatusPending),
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, "done", model.StatusPending, model.StatusExecuted, nil))

	// fromHour 10: only "future" is pending and later.
	deleted, created, err := s.ReplacePending(ctx, "r1", date, 10, []model.ScheduledAction{
		action("new15", "r1", date, 15, model.StatusPending),
		action("new20", "r1", date, 20, model.StatusPending),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, created, "hour 15 is held by the executed row")

	list, err := s.ListActions(ctx, corestore.ActionFilter{Date: date})
	require.NoError(t, err)
	ids := []string{}
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"past", "done", "new20"}, ids)
}

func TestMarkMissed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	today := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	_, _, err := s.ReplacePending(ctx, "r1", today, 0, []model.ScheduledAction{
		action("t13", "r1", today, 13, model.StatusPending),
		action("t14", "r1", today, 14, model.StatusPending),
		action("t23", "r1", today, 23, model.StatusPending),
	})
	require.NoError(t, err)
	_, _, err = s.ReplacePending(ctx, "r1", yesterday, 0, []model.ScheduledAction{
		action("y10", "r1", yesterday, 10, model.StatusPending),
		action("y23", "r1", yesterday, 23, model.StatusPending),
	})
	require.NoError(t, err)

	n, err := s.MarkMissed(ctx, today, 14)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := map[string]model.ActionStatus{
		"t13": model.StatusMissed,
		"t14": model.StatusPending,
		"t23": model.StatusPending,
		"y10": model.StatusMissed,
		"y23": model.StatusMissed,
	}
	for id, st := range want {
		a, err := s.GetAction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, st, a.Status, id)
	}
}

func TestCancelPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	today := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)
	_, _, err := s.ReplacePending(ctx, "r1", today, 0, []model.ScheduledAction{
		action("past", "r1", today, 3, model.StatusPending),
		action("future", "r1", today, 20, model.StatusPending),
	})
	require.NoError(t, err)
	_, _, err = s.ReplacePending(ctx, "r1", tomorrow, 0, []model.ScheduledAction{
		action("tomorrow", "r1", tomorrow, 1, model.StatusPending),
	})
	require.NoError(t, err)

	n, err := s.CancelPending(ctx, "r1", today, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	past, err := s.GetAction(ctx, "past")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, past.Status)

	count, err := s.CountActions(ctx, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	_, _, err := s.ReplacePending(ctx, "r1", date, 0, []model.ScheduledAction{action("a", "r1", date, 4, model.StatusPending)})
	require.NoError(t, err)
	at := date.Add(4*time.Hour + 5*time.Minute)
	require.NoError(t, s.UpdateStatus(ctx, "a", model.StatusPending, model.StatusExecuted, &at))
	a, err := s.GetAction(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExecuted, a.Status)
	require.NotNil(t, a.ExecutedAt)
	assert.True(t, at.Equal(*a.ExecutedAt))

	if err := s.UpdateStatus(ctx, "missing", model.StatusPending, model.StatusFailed, nil); !errors.Is(err, corestore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	err = s.UpdateStatus(ctx, "a", model.StatusPending, model.StatusCancelled, nil)
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	a, err = s.GetAction(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.StatusExecuted, a.Status)
}

func TestListActionsByDeviceFromDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	today := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	yesterday, tomorrow := today.AddDate(0, 0, -1), today.AddDate(0, 0, 1)
	boilerDay, boilerNight, ev := testRule("b1"), testRule("b2"), testRule("e1")
	ev.DeviceID = "ev"
	for _, r := range []model.Rule{boilerDay, boilerNight, ev} {
		require.NoError(t, s.CreateRule(ctx, r))
	}
	seed := map[string][]model.ScheduledAction{
		"b1": {action("b1-old", "b1", yesterday, 3, model.StatusPending), action("b1-today", "b1", today, 14, model.StatusPending)},
		"b2": {action("b2-tomorrow", "b2", tomorrow, 2, model.StatusPending), action("b2-done", "b2", tomorrow, 5, model.StatusExecuted)},
		"e1": {action("e1-today", "e1", today, 1, model.StatusPending)},
	}
	for rule, actions := range seed {
		for _, a := range actions {
			_, _, err := s.ReplacePending(ctx, rule, a.Date, 24, []model.ScheduledAction{a})
			require.NoError(t, err)
		}
	}

	got, err := s.ListActions(ctx, corestore.ActionFilter{DeviceID: "boiler", From: today, Status: model.StatusPending})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"b1-today", "b2-tomorrow"}, ids)
}
