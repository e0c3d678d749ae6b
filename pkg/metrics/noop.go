package metrics

// Noop is a Metrics recorder that records nothing. Used in tests and
// when metrics are disabled.
type Noop struct{}

func (Noop) RecordCycle(float64)               {}
func (Noop) RecordError(string)                {}
func (Noop) RecordTicksFetched(string, int)    {}
func (Noop) RecordCacheHit(string)             {}
func (Noop) RecordCacheMiss()                  {}
func (Noop) RecordLatency(string, float64)     {}
func (Noop) RecordSnapshotAge(string, float64) {}
