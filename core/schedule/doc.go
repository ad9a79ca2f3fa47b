// Package schedule turns rules and daily prices into persisted scheduled
// actions.
//
// Regenerator recomputes one rule's actions for a date: it checks the rule's
// weekdays, fetches the day's prices, selects the cheapest hours, then
// replaces the rule's future pending actions in a single store transaction.
// Actions that already started, or reached a terminal status, are never
// touched. RuleService validates and persists rules and keeps their
// schedules in sync; StatusService records executor reports.
package schedule
