package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/logger"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/store"
)

// Summary reports how a rule's schedule was brought in line with the rule.
type Summary struct {
	RuleID    string    `json:"rule_id"`
	Outcomes  []Outcome `json:"outcomes,omitempty"`
	Cancelled int       `json:"cancelled,omitempty"`
	Message   string    `json:"message"`
}

// RuleService validates and persists rules. Persisting never regenerates by
// itself; callers run Sync or SyncAsync afterwards.
type RuleService struct {
	rules   store.RuleStore
	actions store.ActionStore
	regen   *Regenerator
	log     logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRuleService builds a RuleService. asyncTimeout bounds background syncs.
func NewRuleService(rules store.RuleStore, actions store.ActionStore, regen *Regenerator, log logger.Logger, asyncTimeout time.Duration) *RuleService {
	if log == nil {
		log = logger.Nop{}
	}
	if asyncTimeout <= 0 {
		asyncTimeout = 2 * time.Minute
	}
	return &RuleService{rules: rules, actions: actions, regen: regen, log: log, timeout: asyncTimeout}
}

// Create validates r, assigns an id and stores it.
func (s *RuleService) Create(ctx context.Context, r model.Rule) (model.Rule, error) {
	r.SetDefaults()
	if err := r.Validate(); err != nil {
		return model.Rule{}, err
	}
	now := s.regen.Now()
	r.ID = uuid.NewString()
	r.CreatedAt, r.UpdatedAt = now, now
	if err := s.rules.CreateRule(ctx, r); err != nil {
		return model.Rule{}, err
	}
	s.log.Infof("rule %s created for device %s", r.ID, r.DeviceID)
	return r, nil
}

// Get loads a rule.
func (s *RuleService) Get(ctx context.Context, id string) (model.Rule, error) {
	return s.rules.GetRule(ctx, id)
}

// List returns rules matching f.
func (s *RuleService) List(ctx context.Context, f store.RuleFilter) ([]model.Rule, error) {
	return s.rules.ListRules(ctx, f)
}

// Update applies p over rule id. Fields p leaves nil keep their stored value.
func (s *RuleService) Update(ctx context.Context, id string, p model.RulePatch) (model.Rule, error) {
	r, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return model.Rule{}, err
	}
	p.Apply(&r)
	r.SetDefaults()
	if err := r.Validate(); err != nil {
		return model.Rule{}, err
	}
	r.UpdatedAt = s.regen.Now()
	if err := s.rules.UpdateRule(ctx, r); err != nil {
		return model.Rule{}, err
	}
	return r, nil
}

// SetEnabled switches a rule on or off.
func (s *RuleService) SetEnabled(ctx context.Context, id string, enabled bool) (model.Rule, error) {
	r, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return model.Rule{}, err
	}
	r.Enabled = enabled
	r.UpdatedAt = s.regen.Now()
	if err := s.rules.UpdateRule(ctx, r); err != nil {
		return model.Rule{}, err
	}
	return r, nil
}

// Toggle flips the enabled flag of a rule.
func (s *RuleService) Toggle(ctx context.Context, id string) (model.Rule, error) {
	r, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return model.Rule{}, err
	}
	return s.SetEnabled(ctx, id, !r.Enabled)
}

// Delete removes a rule and returns it disabled, ready for Sync to cancel
// its future actions.
func (s *RuleService) Delete(ctx context.Context, id string) (model.Rule, error) {
	r, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return model.Rule{}, err
	}
	if err := s.rules.DeleteRule(ctx, id); err != nil {
		return model.Rule{}, err
	}
	r.Enabled = false
	return r, nil
}

// Sync regenerates today and tomorrow for an enabled rule, or cancels the
// future pending actions of a disabled one. Missing prices are reported in
// the summary message, not as an error.
func (s *RuleService) Sync(ctx context.Context, r model.Rule) (Summary, error) {
	sum := Summary{RuleID: r.ID}
	now := s.regen.Now()
	today := model.Day(now)
	if !r.Enabled {
		n, err := s.actions.CancelPending(ctx, r.ID, today, firstFutureHour(today, now))
		if err != nil {
			return sum, fmt.Errorf("cancel pending actions: %w", err)
		}
		sum.Cancelled = n
		if n > 0 && s.regen.pub != nil {
			s.regen.pub.Publish(events.CancelEvent{RuleID: r.ID, DeviceID: r.DeviceID, Cancelled: n})
		}
		sum.Message = fmt.Sprintf("cancelled %d pending actions", n)
		return sum, nil
	}

	created := 0
	var notes []string
	for _, date := range []time.Time{today, today.AddDate(0, 0, 1)} {
		out, err := s.regen.Regenerate(ctx, r, date, events.TriggerRule)
		if err != nil && !errors.Is(err, ErrPricesUnavailable) {
			return sum, err
		}
		sum.Outcomes = append(sum.Outcomes, out)
		created += out.Created
		if out.Created == 0 {
			notes = append(notes, out.Date+": "+out.Message)
		}
	}
	sum.Message = fmt.Sprintf("created %d scheduled actions", created)
	for _, n := range notes {
		sum.Message += "; " + n
	}
	return sum, nil
}

// SyncAsync runs Sync in the background with its own deadline.
func (s *RuleService) SyncAsync(r model.Rule) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		sum, err := s.Sync(ctx, r)
		if err != nil {
			s.log.Errorf("sync rule %s: %v", r.ID, err)
			return
		}
		s.log.Infof("rule %s synced: %s", r.ID, sum.Message)
	}()
}

// Wait blocks until background syncs finish.
func (s *RuleService) Wait() { s.wg.Wait() }
