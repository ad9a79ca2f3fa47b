package metrics

import "errors"

// MultiSink fans records out to several sinks. Every sink is called; the
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordRegeneration(rec RegenerationRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordRegeneration(rec))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSweep(rec SweepRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SweepRecorder); ok {
			errs = append(errs, r.RecordSweep(rec))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordPriceFetch(rec PriceFetchRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(PriceFetchRecorder); ok {
			errs = append(errs, r.RecordPriceFetch(rec))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordStatus(rec StatusRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(StatusRecorder); ok {
			errs = append(errs, r.RecordStatus(rec))
		}
	}
	return errors.Join(errs...)
}
