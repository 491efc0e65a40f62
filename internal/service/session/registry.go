package session

import (
	"sync"
	"time"

	"ai-speech-diarization-service/internal/observability/metrics"
)

// CustomerMetadata carries the stream parameters announced in
// audio_stream_start.
type CustomerMetadata struct {
	StreamID    string
	Codec       string
	SampleRate  int
	TimesliceMs int
	ClientTs    int64
	Extra       map[string]string
}

// Customer is one logical audio source within a session. It owns exactly one
// active stream at a time.
type Customer struct {
	ID        string
	Meta      CustomerMetadata
	Status    Status
	StartTime time.Time
	EndTime   time.Time
}

// Session groups customers that share continuity (e.g. one physical
// location). All mutations of a session go through its own mutex so that
// concurrent connection handlers referencing the same session id are
// serialized without contending with other sessions.
type Session struct {
	mu        sync.Mutex
	id        string
	customers map[string]*Customer
	status    Status
	startTime time.Time
	endTime   time.Time
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Status returns the aggregate session status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) upsertCustomer(customerId string, meta CustomerMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customerId] = &Customer{
		ID:        customerId,
		Meta:      meta,
		Status:    StatusActive,
		StartTime: time.Now(),
	}
}

func (s *Session) markCustomerStatus(customerId string, st Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[customerId]
	if !ok {
		return false
	}
	c.Status = st
	if st.IsTerminal() {
		c.EndTime = time.Now()
	}
	return true
}

// isClosed evaluates the all-terminal condition and, the first time it holds,
// transitions the aggregate status to closed and records the end time. The
// transition is sticky: once closed the session stays closed. The second
// return value reports whether this call performed the transition.
func (s *Session) isClosed() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusClosed {
		return true, false
	}
	if len(s.customers) == 0 {
		return false, false
	}
	for _, c := range s.customers {
		if !c.Status.IsTerminal() {
			return false, false
		}
	}
	s.status = StatusClosed
	s.endTime = time.Now()
	return true, true
}

// CustomerInfo is a read-only snapshot of one customer for monitoring.
type CustomerInfo struct {
	CustomerID string    `json:"customer_id"`
	StreamID   string    `json:"stream_id"`
	Codec      string    `json:"codec,omitempty"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time,omitempty"`
}

// SessionInfo is a read-only snapshot of one session for monitoring.
type SessionInfo struct {
	SessionID string         `json:"session_id"`
	Status    string         `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time,omitempty"`
	Customers []CustomerInfo `json:"customers"`
}

func (s *Session) snapshot() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		SessionID: s.id,
		Status:    s.status.String(),
		StartTime: s.startTime,
		EndTime:   s.endTime,
		Customers: make([]CustomerInfo, 0, len(s.customers)),
	}
	for _, c := range s.customers {
		info.Customers = append(info.Customers, CustomerInfo{
			CustomerID: c.ID,
			StreamID:   c.Meta.StreamID,
			Codec:      c.Meta.Codec,
			SampleRate: c.Meta.SampleRate,
			Status:     c.Status.String(),
			StartTime:  c.StartTime,
			EndTime:    c.EndTime,
		})
	}
	return info
}

// Registry is the process-wide mapping from session id to session state. The
// registry mutex guards only the map itself; per-session mutation is
// serialized by each Session's own mutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *metrics.Metrics
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		metrics:  metrics.DefaultMetrics,
	}
}

// GetOrCreate returns the session for the given id, creating it with status
// active, an empty customer set and a start timestamp if absent.
func (r *Registry) GetOrCreate(sessionId string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[sessionId]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionId]; ok {
		return s
	}
	s = &Session{
		id:        sessionId,
		customers: make(map[string]*Customer),
		status:    StatusActive,
		startTime: time.Now(),
	}
	r.sessions[sessionId] = s
	r.metrics.SessionsCreated.Inc()
	return s
}

// UpsertCustomer registers or replaces a customer within a session.
// Idempotent: re-registering overwrites the metadata and resets the customer
// status to active.
func (r *Registry) UpsertCustomer(sessionId, customerId string, meta CustomerMetadata) {
	r.GetOrCreate(sessionId).upsertCustomer(customerId, meta)
}

// MarkCustomerStatus records a customer status transition. Unknown session or
// customer ids are ignored.
func (r *Registry) MarkCustomerStatus(sessionId, customerId string, st Status) {
	r.mu.RLock()
	s, ok := r.sessions[sessionId]
	r.mu.RUnlock()
	if !ok {
		return
	}
	s.markCustomerStatus(customerId, st)
}

// IsSessionClosed reports whether every customer of the session has reached a
// terminal status. The first time this becomes true the session's aggregate
// status transitions to closed and an end timestamp is recorded; subsequent
// queries keep returning true.
func (r *Registry) IsSessionClosed(sessionId string) bool {
	r.mu.RLock()
	s, ok := r.sessions[sessionId]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	closed, transitioned := s.isClosed()
	if transitioned {
		r.metrics.SessionsClosed.Inc()
	}
	return closed
}

// ActiveCount returns the number of sessions that are not closed.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.Status() != StatusClosed {
			n++
		}
	}
	return n
}

// Snapshot returns monitoring snapshots of all known sessions.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.snapshot())
	}
	return infos
}
