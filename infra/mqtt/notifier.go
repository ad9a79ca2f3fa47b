package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/cheaphours/core/events"
	"github.com/kilianp07/cheaphours/core/model"
	"github.com/kilianp07/cheaphours/core/monitoring"
	"github.com/kilianp07/cheaphours/core/store"
	"github.com/kilianp07/cheaphours/infra/logger"
	"github.com/kilianp07/cheaphours/internal/eventbus"
)

// ActionLister reads scheduled actions.
type ActionLister interface {
	ListActions(ctx context.Context, f store.ActionFilter) ([]model.ScheduledAction, error)
}

// StatusUpdater applies a reported action status.
type StatusUpdater interface {
	Update(ctx context.Context, id string, status model.ActionStatus, source string) (model.ScheduledAction, error)
}

type publisher interface {
	Publish(topic, kind string, retained bool, payload []byte) error
	Config() Config
}

// Slot is one pending hour in a published schedule.
type Slot struct {
	ActionID  string   `json:"action_id"`
	RuleID    string   `json:"rule_id"`
	Date      string   `json:"date"`
	StartHour int      `json:"start_hour"`
	EndHour   int      `json:"end_hour"`
	Price     *float64 `json:"price_per_kwh,omitempty"`
}

// SchedulePayload is the retained message a device reads to know when to
// switch on. It lists every pending slot of the device, across its rules,
// from today onward.
type SchedulePayload struct {
	DeviceID    string    `json:"device_id"`
	Slots       []Slot    `json:"slots"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Notifier republishes a device's schedule whenever one of its rules
// changed it.
type Notifier struct {
	pub     publisher
	actions ActionLister
	now     func() time.Time
	log     logger.Logger
}

// NewNotifier creates a Notifier publishing through pub. now gives the
// current time in the scheduling location; nil means time.Now.
func NewNotifier(pub publisher, actions ActionLister, now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{pub: pub, actions: actions, now: now, log: logger.New("mqtt-notifier")}
}

// Run consumes scheduling events until ctx is done or the bus closes.
func (n *Notifier) Run(ctx context.Context, bus *eventbus.Bus[events.Event]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		defer monitoring.Recover()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				device, changed := changedDevice(ev)
				if !changed {
					continue
				}
				if err := n.Notify(ctx, device); err != nil {
					n.log.Errorf("notify device %s: %v", device, err)
				}
			}
		}
	}()
	return done
}

// changedDevice returns the device whose pending set ev altered.
func changedDevice(ev events.Event) (string, bool) {
	switch e := ev.(type) {
	case events.RegenerationEvent:
		return e.DeviceID, e.Created > 0 || e.Deleted > 0
	case events.CancelEvent:
		return e.DeviceID, e.Cancelled > 0
	}
	return "", false
}

// Notify publishes every pending slot of deviceID from today onward.
func (n *Notifier) Notify(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("empty device id")
	}
	now := n.now()
	actions, err := n.actions.ListActions(ctx, store.ActionFilter{
		DeviceID: deviceID,
		From:     model.Day(now),
		Status:   model.StatusPending,
	})
	if err != nil {
		return fmt.Errorf("list actions: %w", err)
	}
	payload := SchedulePayload{
		DeviceID:    deviceID,
		Slots:       make([]Slot, 0, len(actions)),
		GeneratedAt: now.UTC(),
	}
	for _, a := range actions {
		payload.Slots = append(payload.Slots, Slot{
			ActionID:  a.ID,
			RuleID:    a.RuleID,
			Date:      model.DateKey(a.Date),
			StartHour: a.StartHour,
			EndHour:   a.EndHour,
			Price:     a.Price,
		})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.pub.Publish(n.pub.Config().ScheduleTopic(deviceID), "schedule", true, raw)
}

// StatusMessage is what a device reports after acting on a slot.
type StatusMessage struct {
	ActionID string `json:"action_id"`
	Status   string `json:"status"`
}

// StatusHandler returns a message handler applying device status reports
// through updater.
func StatusHandler(ctx context.Context, updater StatusUpdater, log logger.Logger) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		device := deviceFromTopic(msg.Topic())
		var m StatusMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			log.Errorf("decode status from %s: %v", device, err)
			return
		}
		status, err := model.ParseStatus(m.Status)
		if err != nil || m.ActionID == "" {
			log.Errorf("invalid status report from %s: %q for %q", device, m.Status, m.ActionID)
			return
		}
		uctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := updater.Update(uctx, m.ActionID, status, "mqtt:"+device); err != nil {
			log.Warnf("status %s for action %s from %s: %v", status, m.ActionID, device, err)
			return
		}
		log.Infof("action %s reported %s by %s", m.ActionID, status, device)
	}
}

// deviceFromTopic extracts the device segment of <root>/<device>/status.
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return topic
	}
	return parts[len(parts)-2]
}
