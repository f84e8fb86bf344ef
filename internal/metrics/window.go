package metrics

// Point is one sample of a jitter series.
type Point struct {
	Sequence  uint64
	Deviation int64
}

// WindowStats summarises a contiguous window of measurements.
type WindowStats struct {
	Count         int
	FirstSequence uint64
	LastSequence  uint64
	MaxJitter     uint64
	MeanJitter    uint64
	Points        []Point
}

// Window computes jitter statistics for records against the target
// half-period. The mean uses integer division.
func Window(records []Measurement, target uint64) WindowStats {
	ws := WindowStats{Count: len(records)}
	if len(records) == 0 {
		return ws
	}
	ws.FirstSequence = records[0].Sequence
	ws.LastSequence = records[len(records)-1].Sequence
	ws.Points = make([]Point, len(records))

	var sum uint64
	for i, m := range records {
		jitter := m.Jitter(target)
		if jitter > ws.MaxJitter {
			ws.MaxJitter = jitter
		}
		sum += jitter
		ws.Points[i] = Point{Sequence: m.Sequence, Deviation: m.Deviation(target)}
	}
	ws.MeanJitter = sum / uint64(len(records))
	return ws
}
