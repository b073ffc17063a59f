package metrics

import (
	"sync"
	"testing"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.SessionStarted()
	c.SessionStarted()
	c.SessionSucceeded()
	c.SessionFailed()
	c.FrameRead(8)
	c.FrameRead(24)
	c.ProgressMessage()
	c.DecodeError()

	snap := c.Snapshot()
	if snap.SessionsStarted != 2 {
		t.Errorf("SessionsStarted = %d, want 2", snap.SessionsStarted)
	}
	if snap.SessionsSucceeded != 1 {
		t.Errorf("SessionsSucceeded = %d, want 1", snap.SessionsSucceeded)
	}
	if snap.SessionsFailed != 1 {
		t.Errorf("SessionsFailed = %d, want 1", snap.SessionsFailed)
	}
	if snap.FramesRead != 2 {
		t.Errorf("FramesRead = %d, want 2", snap.FramesRead)
	}
	if snap.BytesRead != 32 {
		t.Errorf("BytesRead = %d, want 32", snap.BytesRead)
	}
	if snap.ProgressMessages != 1 {
		t.Errorf("ProgressMessages = %d, want 1", snap.ProgressMessages)
	}
	if snap.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", snap.DecodeErrors)
	}
}

func TestCollectorNilReceiver(t *testing.T) {
	var c *Collector

	// None of these should panic.
	c.SessionStarted()
	c.SessionSucceeded()
	c.SessionFailed()
	c.SessionCrashed()
	c.FrameRead(100)
	c.ProgressMessage()
	c.DecodeError()

	snap := c.Snapshot()
	if snap != (Snapshot{}) {
		t.Errorf("nil collector snapshot = %+v, want zero", snap)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.FrameRead(8)
				c.ProgressMessage()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.FramesRead != 1000 {
		t.Errorf("FramesRead = %d, want 1000", snap.FramesRead)
	}
	if snap.ProgressMessages != 1000 {
		t.Errorf("ProgressMessages = %d, want 1000", snap.ProgressMessages)
	}
}
