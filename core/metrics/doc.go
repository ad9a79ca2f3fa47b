// Package metrics defines the sinks that record scheduling activity:
// regenerations, expiry sweeps, price feed lookups and status reports.
// Sinks are built from configuration through a factory registry; several
// configured sinks are combined into a MultiSink.
package metrics
