package split

// Segment is one conceptual [Start, End) cut of the source.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// PlanSegments computes the conceptual segment boundaries a config produces
// on a source of the given duration (seconds).
//
// For time_based configs the final boundary is implicitly the source
// duration when the last time point falls short of it. Zero-length segments
// from duplicate boundaries are preserved.
func PlanSegments(cfg Config, duration float64) []Segment {
	switch cfg.Method {
	case MethodTimeBased:
		boundaries := cfg.TimePoints
		if n := len(boundaries); n > 0 && boundaries[n-1] < duration {
			boundaries = append(append([]float64(nil), boundaries...), duration)
		}
		var segments []Segment
		for i := 1; i < len(boundaries); i++ {
			segments = append(segments, Segment{
				Index: i - 1,
				Start: boundaries[i-1],
				End:   boundaries[i],
			})
		}
		return segments

	case MethodIntervals:
		if cfg.IntervalDuration <= 0 || duration <= 0 {
			return nil
		}
		var segments []Segment
		for start := 0.0; start < duration; start += cfg.IntervalDuration {
			end := start + cfg.IntervalDuration
			if end > duration {
				end = duration
			}
			segments = append(segments, Segment{
				Index: len(segments),
				Start: start,
				End:   end,
			})
		}
		return segments

	case MethodChapters:
		var segments []Segment
		for _, ch := range cfg.Chapters {
			segments = append(segments, Segment{
				Index: len(segments),
				Start: ch.Start,
				End:   ch.End,
			})
		}
		return segments
	}

	return nil
}

// ExpectedSegments returns the number of segments a config will produce
// when that is knowable without the source duration, 0 otherwise. Only
// chapter splits carry their own boundaries end to end.
func ExpectedSegments(cfg Config) int {
	if cfg.Method == MethodChapters {
		return len(cfg.Chapters)
	}
	return 0
}
