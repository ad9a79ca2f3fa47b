// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - RegenerationEvent: a rule's schedule was recomputed for a date
//   - CancelEvent: a disabled rule's future pending actions were cancelled
//   - SweepEvent: elapsed pending actions were marked missed
//   - PriceFetchEvent: a day's prices were requested from the price feed
//   - StatusEvent: an executor reported the outcome of an action
package events
