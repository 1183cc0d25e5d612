package pipeline

import (
	"sync"

	"parkvision-service/internal/domain/occupancy"
)

// Publisher hands the latest annotated frame and snapshot to any number of
// concurrent readers. Published values are immutable; the critical section is
// a field swap, so readers can never throttle the pipeline goroutine and a
// read never pairs a frame with a snapshot from a different cycle.
type Publisher struct {
	mu    sync.RWMutex
	frame []byte
	snap  occupancy.Snapshot
	seq   uint64
}

// NewPublisher seeds the publisher so reads before the first publish return a
// placeholder frame and an all-zones-available snapshot instead of blocking.
func NewPublisher(zones []occupancy.Zone) *Publisher {
	return &Publisher{
		frame: placeholderFrame(),
		snap:  occupancy.AllAvailable(zones),
	}
}

// Publish replaces the current frame/snapshot pair. Pipeline goroutine only.
func (p *Publisher) Publish(frameJPEG []byte, snap occupancy.Snapshot) {
	p.mu.Lock()
	p.frame = frameJPEG
	p.snap = snap
	p.seq++
	p.mu.Unlock()
}

// Read returns the current frame/snapshot pair and its publish sequence
// number. Callers must not modify the returned values.
func (p *Publisher) Read() ([]byte, occupancy.Snapshot, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame, p.snap, p.seq
}
