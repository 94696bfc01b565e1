package streaming

// DeserializerStats reports introspection counters for a Deserializer,
// surfaced synchronously and never wired to a metrics system (metrics stay
// an explicit non-goal; this is the teacher's Debugger-adjacent style of
// exposing raw counters for callers who want them, not a telemetry layer).
type DeserializerStats struct {
	BytesConsumed  int64
	MatchesEmitted int64
	Compactions    int64
}

func statsFromMachine(s Stats) DeserializerStats {
	return DeserializerStats{
		BytesConsumed:  s.BytesConsumed,
		MatchesEmitted: s.MatchesEmitted,
		Compactions:    s.Compactions,
	}
}
