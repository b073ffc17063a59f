// Package metrics provides counters for compiler session activity.
package metrics

import "sync"

// Collector accumulates session counters. All methods are safe for concurrent
// use and safe to call on a nil receiver, so callers can pass a nil Collector
// to disable metrics without guarding every call site.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   uint64
	sessionsSucceeded uint64
	sessionsFailed    uint64
	sessionsCrashed   uint64

	framesRead       uint64
	progressMessages uint64
	bytesRead        uint64
	decodeErrors     uint64
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	SessionsStarted   uint64
	SessionsSucceeded uint64
	SessionsFailed    uint64
	SessionsCrashed   uint64

	FramesRead       uint64
	ProgressMessages uint64
	BytesRead        uint64
	DecodeErrors     uint64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SessionStarted records a compiler process launch.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsStarted++
	c.mu.Unlock()
}

// SessionSucceeded records a session that produced an artifact.
func (c *Collector) SessionSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsSucceeded++
	c.mu.Unlock()
}

// SessionFailed records a session that produced a diagnostics bundle.
func (c *Collector) SessionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsFailed++
	c.mu.Unlock()
}

// SessionCrashed records a session that ended without a terminal frame.
func (c *Collector) SessionCrashed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sessionsCrashed++
	c.mu.Unlock()
}

// FrameRead records a completed frame and its total size in bytes,
// header included.
func (c *Collector) FrameRead(bytes int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesRead++
	c.bytesRead += uint64(bytes)
	c.mu.Unlock()
}

// ProgressMessage records a progress frame delivered to the sink.
func (c *Collector) ProgressMessage() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.progressMessages++
	c.mu.Unlock()
}

// DecodeError records a payload that failed to decode.
func (c *Collector) DecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counters. A nil collector returns a
// zero snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsSucceeded: c.sessionsSucceeded,
		SessionsFailed:    c.sessionsFailed,
		SessionsCrashed:   c.sessionsCrashed,
		FramesRead:        c.framesRead,
		ProgressMessages:  c.progressMessages,
		BytesRead:         c.bytesRead,
		DecodeErrors:      c.decodeErrors,
	}
}
