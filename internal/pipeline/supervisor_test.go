package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a scripted sequence of connections, then parks until the
// context is cancelled.
type fakeSource struct {
	mu          sync.Mutex
	connections [][]byte
	errs        []error
	opens       int
}

func (s *fakeSource) Open(ctx context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	i := s.opens
	s.opens++
	s.mu.Unlock()

	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.connections) {
		return io.NopCloser(bytes.NewReader(s.connections[i])), nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func jpegMarkers(body ...byte) []byte {
	framed := []byte{0xff, 0xd8}
	framed = append(framed, body...)
	return append(framed, 0xff, 0xd9)
}

func TestSupervisorReconnectsAfterConnectFailure(t *testing.T) {
	frame := jpegMarkers(0x01)
	src := &fakeSource{
		errs:        []error{errors.New("dial refused"), nil},
		connections: [][]byte{nil, frame},
	}

	frames := make(chan []byte, 8)
	sup := NewSupervisor(src, time.Millisecond, func(_ context.Context, f []byte) {
		frames <- f
	}, newTestMetrics(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	select {
	case got := <-frames:
		assert.Equal(t, frame, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered after reconnect")
	}
	cancel()
	<-done

	assert.GreaterOrEqual(t, src.openCount(), 2)
}

func TestSupervisorDiscardsPartialFrameAcrossReconnect(t *testing.T) {
	// First connection dies mid-frame; second delivers a complete frame.
	partial := []byte{0xff, 0xd8, 0x01, 0x02}
	complete := jpegMarkers(0x03)
	src := &fakeSource{connections: [][]byte{partial, complete}}

	frames := make(chan []byte, 8)
	sup := NewSupervisor(src, time.Millisecond, func(_ context.Context, f []byte) {
		frames <- f
	}, newTestMetrics(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	select {
	case got := <-frames:
		// No cross-reconnect stitching: only the complete frame surfaces.
		assert.Equal(t, complete, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}
	cancel()
	<-done

	require.Empty(t, frames)
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	sup := NewSupervisor(src, time.Millisecond, func(context.Context, []byte) {
		t.Error("no frames expected")
	}, newTestMetrics(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop on cancel")
	}
}
