package schedule

import (
	"context"
	"fmt"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/store"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

// StatusService records outcomes reported by the device executor.
type StatusService struct {
	actions store.ActionStore
	clock   Clock
	pub     eventbus.Publisher[events.Event]
}

// NewStatusService builds a StatusService. pub may be nil.
func NewStatusService(actions store.ActionStore, clock Clock, pub eventbus.Publisher[events.Event]) *StatusService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StatusService{actions: actions, clock: clock, pub: pub}
}

// Update sets the status of action id to executed, failed or cancelled.
// source names the reporter in the published event.
func (s *StatusService) Update(ctx context.Context, id string, status model.ActionStatus, source string) (model.ScheduledAction, error) {
	if !status.Reportable() {
		return model.ScheduledAction{}, fmt.Errorf("%w: %s cannot be reported", model.ErrInvalidTransition, status)
	}
	a, err := s.actions.GetAction(ctx, id)
	if err != nil {
		return model.ScheduledAction{}, err
	}
	if !a.Status.CanTransitionTo(status) {
		return model.ScheduledAction{}, fmt.Errorf("%w: %s to %s", model.ErrInvalidTransition, a.Status, status)
	}
	if status == model.StatusExecuted {
		at := s.clock.Now()
		a.ExecutedAt = &at
	}
	if err := s.actions.UpdateStatus(ctx, id, a.Status, status, a.ExecutedAt); err != nil {
		return model.ScheduledAction{}, err
	}
	a.Status = status
	if s.pub != nil {
		s.pub.Publish(events.StatusEvent{ActionID: a.ID, RuleID: a.RuleID, Status: string(status), Source: source})
	}
	return a, nil
}
