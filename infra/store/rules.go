package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/cheaphours/core/model"
	corestore "github.com/kilianp07/cheaphours/core/store"
)

type ruleRow struct {
	ID                 string        `db:"id"`
	DeviceID           string        `db:"device_id"`
	Name               string        `db:"name"`
	MaxHours           int           `db:"max_hours"`
	MinContinuousHours int           `db:"min_continuous_hours"`
	WindowStart        sql.NullInt64 `db:"time_window_start"`
	WindowEnd          sql.NullInt64 `db:"time_window_end"`
	DaysOfWeek         int           `db:"days_of_week"`
	Enabled            int           `db:"is_enabled"`
	CreatedAt          int64         `db:"created_at"`
	UpdatedAt          int64         `db:"updated_at"`
}

const ruleColumns = `id, device_id, name, max_hours, min_continuous_hours, time_window_start,
        time_window_end, days_of_week, is_enabled, created_at, updated_at`

func toRuleRow(r model.Rule) ruleRow {
	return ruleRow{
		ID:                 r.ID,
		DeviceID:           r.DeviceID,
		Name:               r.Name,
		MaxHours:           r.MaxHours,
		MinContinuousHours: r.MinContinuousHours,
		WindowStart:        nullHour(r.WindowStart),
		WindowEnd:          nullHour(r.WindowEnd),
		DaysOfWeek:         int(r.DaysOfWeek),
		Enabled:            boolToInt(r.Enabled),
		CreatedAt:          r.CreatedAt.Unix(),
		UpdatedAt:          r.UpdatedAt.Unix(),
	}
}

func (row ruleRow) rule() model.Rule {
	return model.Rule{
		ID:                 row.ID,
		DeviceID:           row.DeviceID,
		Name:               row.Name,
		MaxHours:           row.MaxHours,
		MinContinuousHours: row.MinContinuousHours,
		WindowStart:        hourPtr(row.WindowStart),
		WindowEnd:          hourPtr(row.WindowEnd),
		DaysOfWeek:         model.DaysOfWeek(row.DaysOfWeek),
		Enabled:            row.Enabled != 0,
		CreatedAt:          time.Unix(row.CreatedAt, 0).UTC(),
		UpdatedAt:          time.Unix(row.UpdatedAt, 0).UTC(),
	}
}

func nullHour(h *int) sql.NullInt64 {
	if h == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*h), Valid: true}
}

func hourPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	h := int(n.Int64)
	return &h
}

// CreateRule inserts a new rule.
func (s *SQLStore) CreateRule(ctx context.Context, r model.Rule) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO rules (`+ruleColumns+`)
        VALUES (:id, :device_id, :name, :max_hours, :min_continuous_hours, :time_window_start,
        :time_window_end, :days_of_week, :is_enabled, :created_at, :updated_at)`, toRuleRow(r))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("rule %s: %w", r.ID, corestore.ErrConflict)
		}
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// GetRule loads a rule by id.
func (s *SQLStore) GetRule(ctx context.Context, id string) (model.Rule, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var row ruleRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+ruleColumns+` FROM rules WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rule{}, fmt.Errorf("rule %s: %w", id, corestore.ErrNotFound)
	}
	if err != nil {
		return model.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	return row.rule(), nil
}

// ListRules returns the rules matching f ordered by creation time.
func (s *SQLStore) ListRules(ctx context.Context, f corestore.RuleFilter) ([]model.Rule, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var where []string
	var args []any
	if f.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.EnabledOnly {
		where = append(where, "is_enabled = 1")
	}
	q := `SELECT ` + ruleColumns + ` FROM rules`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"
	var rows []ruleRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]model.Rule, len(rows))
	for i, row := range rows {
		out[i] = row.rule()
	}
	return out, nil
}

// UpdateRule overwrites every mutable field of a rule.
func (s *SQLStore) UpdateRule(ctx context.Context, r model.Rule) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.NamedExecContext(ctx, `UPDATE rules SET device_id = :device_id, name = :name,
        max_hours = :max_hours, min_continuous_hours = :min_continuous_hours,
        time_window_start = :time_window_start, time_window_end = :time_window_end,
        days_of_week = :days_of_week, is_enabled = :is_enabled, updated_at = :updated_at
        WHERE id = :id`, toRuleRow(r))
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return requireAffected(res, "rule", r.ID)
}

// DeleteRule removes a rule. Its scheduled actions are kept as history.
func (s *SQLStore) DeleteRule(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM rules WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireAffected(res, "rule", id)
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, corestore.ErrNotFound)
	}
	return nil
}
