// Package metrics holds the measurement data model and the statistics derived
// from it.
//
// # Measurements
//
// A [Measurement] is produced for every toggle of the output pin. It carries a
// gap-free sequence number and the overhead-corrected length of the
// half-period that ended at the toggle.
//
// # History
//
// [History] is the consumer-owned, append-only record of a run. Its backing
// storage starts at 1024 records and doubles whenever it fills up. An optional
// limit turns growth beyond that size into [ErrHistoryFull].
//
// # Window statistics
//
// [Window] summarises a trailing slice of the history for the live plot:
//
//	ws := metrics.Window(history.Tail(100), halfPeriod)
//	fmt.Println(ws.MaxJitter, ws.MeanJitter)
//
// Jitter is the absolute deviation of an interval from the target half-period.
//
// # Collector
//
// [Collector] keeps run-wide statistics backed by an HDR histogram so that
// jitter percentiles stay accurate over arbitrarily long runs:
//
//	collector := metrics.NewCollector(halfPeriod)
//	collector.Start()
//	collector.Record(m)
//	stats := collector.Stats(collector.Elapsed())
//
// The Collector is written by the aggregator only but may be read concurrently
// by reporters; all methods take its lock.
package metrics
