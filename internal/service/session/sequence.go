package session

// Warning reports a chunk sequence mismatch. It is advisory only: chunks are
// never dropped or reordered because of it.
type Warning struct {
	Expected int64
	Observed int64
}

// Monitor validates per-stream chunk ordering. Not safe for concurrent use;
// each stream owns exactly one monitor driven from its read loop.
type Monitor struct {
	expected int64
}

// NewMonitor returns a monitor expecting the first sequence number to be 1.
func NewMonitor() *Monitor {
	return &Monitor{expected: 1}
}

// Observe records a sequence number. It returns a warning when the observed
// value differs from the expected one, except on the very first observation
// of the stream, which is never checked. The expected counter always advances
// to observed+1 so that processing continues after gaps or reordering.
func (m *Monitor) Observe(seq int64) (Warning, bool) {
	var w Warning
	warned := false
	if seq != m.expected && m.expected > 1 {
		w = Warning{Expected: m.expected, Observed: seq}
		warned = true
	}
	m.expected = seq + 1
	return w, warned
}

// Expected returns the next expected sequence number.
func (m *Monitor) Expected() int64 {
	return m.expected
}
