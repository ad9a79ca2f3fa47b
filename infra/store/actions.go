package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kilianp07/cheaphours/core/model"
	corestore "github.com/kilianp07/cheaphours/core/store"
)

type actionRow struct {
	ID         string          `db:"id"`
	RuleID     string          `db:"rule_id"`
	Date       string          `db:"scheduled_date"`
	StartHour  int             `db:"start_hour"`
	EndHour    int             `db:"end_hour"`
	Price      sql.NullFloat64 `db:"price_per_kwh"`
	Status     string          `db:"status"`
	ExecutedAt sql.NullInt64   `db:"executed_at"`
	CreatedAt  int64           `db:"created_at"`
}

const actionColumns = `id, rule_id, scheduled_date, start_hour, end_hour, price_per_kwh,
        status, executed_at, created_at`

func toActionRow(a model.ScheduledAction) actionRow {
	row := actionRow{
		ID:        a.ID,
		RuleID:    a.RuleID,
		Date:      model.DateKey(a.Date),
		StartHour: a.StartHour,
		EndHour:   a.EndHour,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt.Unix(),
	}
	if a.Price != nil {
		row.Price = sql.NullFloat64{Float64: *a.Price, Valid: true}
	}
	if a.ExecutedAt != nil {
		row.ExecutedAt = sql.NullInt64{Int64: a.ExecutedAt.Unix(), Valid: true}
	}
	return row
}

func (row actionRow) action() (model.ScheduledAction, error) {
	date, err := model.ParseDate(row.Date, time.UTC)
	if err != nil {
		return model.ScheduledAction{}, fmt.Errorf("action %s: %w", row.ID, err)
	}
	a := model.ScheduledAction{
		ID:        row.ID,
		RuleID:    row.RuleID,
		Date:      date,
		StartHour: row.StartHour,
		EndHour:   row.EndHour,
		Status:    model.ActionStatus(row.Status),
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
	}
	if row.Price.Valid {
		p := row.Price.Float64
		a.Price = &p
	}
	if row.ExecutedAt.Valid {
		at := time.Unix(row.ExecutedAt.Int64, 0).UTC()
		a.ExecutedAt = &at
	}
	return a, nil
}

func toActions(rows []actionRow) ([]model.ScheduledAction, error) {
	out := make([]model.ScheduledAction, 0, len(rows))
	for _, row := range rows {
		a, err := row.action()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// GetAction loads an action by id.
func (s *SQLStore) GetAction(ctx context.Context, id string) (model.ScheduledAction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var row actionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+actionColumns+` FROM scheduled_actions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduledAction{}, fmt.Errorf("action %s: %w", id, corestore.ErrNotFound)
	}
	if err != nil {
		return model.ScheduledAction{}, fmt.Errorf("get action: %w", err)
	}
	return row.action()
}

// ListActions returns the actions matching f in chronological order.
func (s *SQLStore) ListActions(ctx context.Context, f corestore.ActionFilter) ([]model.ScheduledAction, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var where []string
	var args []any
	if !f.Date.IsZero() {
		where = append(where, "scheduled_date = ?")
		args = append(args, model.DateKey(f.Date))
	}
	if f.RuleID != "" {
		where = append(where, "rule_id = ?")
		args = append(args, f.RuleID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.DeviceID != "" {
		where = append(where, "rule_id IN (SELECT id FROM rules WHERE device_id = ?)")
		args = append(args, f.DeviceID)
	}
	if !f.From.IsZero() {
		where = append(where, "scheduled_date >= ?")
		args = append(args, model.DateKey(f.From))
	}
	q := `SELECT ` + actionColumns + ` FROM scheduled_actions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY scheduled_date, start_hour, rule_id"
	var rows []actionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return toActions(rows)
}

// CountActions returns the number of actions of any status on date.
func (s *SQLStore) CountActions(ctx context.Context, date time.Time) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM scheduled_actions WHERE scheduled_date = ?`),
		model.DateKey(date))
	if err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

func purgePending(ctx context.Context, tx *sqlx.Tx, ruleID string, date time.Time, fromHour int) (int, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM scheduled_actions
        WHERE rule_id = ? AND scheduled_date = ? AND status = ? AND start_hour >= ?`),
		ruleID, model.DateKey(date), string(model.StatusPending), fromHour)
	if err != nil {
		return 0, fmt.Errorf("purge pending: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// PurgePending deletes the rule's future pending actions of date.
func (s *SQLStore) PurgePending(ctx context.Context, ruleID string, date time.Time, fromHour int) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var deleted int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		deleted, err = purgePending(ctx, tx, ruleID, date, fromHour)
		return err
	})
	return deleted, err
}

// ReplacePending swaps the rule's future pending actions of date for actions.
// Actions colliding with an existing (rule, date, hour) row are skipped.
func (s *SQLStore) ReplacePending(ctx context.Context, ruleID string, date time.Time, fromHour int,
	actions []model.ScheduledAction) (int, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var deleted, created int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		deleted, err = purgePending(ctx, tx, ruleID, date, fromHour)
		if err != nil {
			return err
		}
		for _, a := range actions {
			res, err := tx.NamedExecContext(ctx, `INSERT INTO scheduled_actions (`+actionColumns+`)
                VALUES (:id, :rule_id, :scheduled_date, :start_hour, :end_hour, :price_per_kwh,
                :status, :executed_at, :created_at)
                ON CONFLICT (rule_id, scheduled_date, start_hour) DO NOTHING`, toActionRow(a))
			if err != nil {
				return fmt.Errorf("insert action: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, created, nil
}

// CancelPending cancels the rule's pending actions from (date, fromHour) on.
func (s *SQLStore) CancelPending(ctx context.Context, ruleID string, date time.Time, fromHour int) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	key := model.DateKey(date)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE scheduled_actions SET status = ?
        WHERE rule_id = ? AND status = ?
        AND (scheduled_date > ? OR (scheduled_date = ? AND start_hour >= ?))`),
		string(model.StatusCancelled), ruleID, string(model.StatusPending), key, key, fromHour)
	if err != nil {
		return 0, fmt.Errorf("cancel pending: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// MarkMissed moves elapsed pending actions to missed in one transaction.
func (s *SQLStore) MarkMissed(ctx context.Context, today time.Time, currentHour int) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	key := model.DateKey(today)
	var missed int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE scheduled_actions SET status = ?
            WHERE status = ? AND scheduled_date = ? AND end_hour > start_hour AND end_hour <= ?`),
			string(model.StatusMissed), string(model.StatusPending), key, currentHour)
		if err != nil {
			return fmt.Errorf("mark missed today: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		missed += int(n)

		res, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE scheduled_actions SET status = ?
            WHERE status = ? AND scheduled_date < ?`),
			string(model.StatusMissed), string(model.StatusPending), key)
		if err != nil {
			return fmt.Errorf("mark missed past: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		missed += int(n)
		return nil
	})
	return missed, err
}

// UpdateStatus moves one action from status from to status to. It fails
// with model.ErrInvalidTransition when the action no longer has status from.
func (s *SQLStore) UpdateStatus(ctx context.Context, id string, from, to model.ActionStatus, executedAt *time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var at sql.NullInt64
	if executedAt != nil {
		at = sql.NullInt64{Int64: executedAt.Unix(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE scheduled_actions
        SET status = ?, executed_at = COALESCE(?, executed_at) WHERE id = ? AND status = ?`),
		string(to), at, id, string(from))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	cur, err := s.GetAction(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: action %s is %s, not %s", model.ErrInvalidTransition, id, cur.Status, from)
}
