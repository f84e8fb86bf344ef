package metrics

// Measurement is the record produced for one toggle of the output pin.
type Measurement struct {
	Sequence   uint64
	IntervalNS uint64
}

// Jitter returns the absolute deviation of the interval from target.
func (m Measurement) Jitter(target uint64) uint64 {
	if m.IntervalNS >= target {
		return m.IntervalNS - target
	}
	return target - m.IntervalNS
}

// Deviation returns the signed deviation of the interval from target.
func (m Measurement) Deviation(target uint64) int64 {
	return int64(m.IntervalNS) - int64(target)
}
