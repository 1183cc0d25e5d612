package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkvision-service/internal/domain/occupancy"
)

type fakeDetector struct {
	calls   int
	results []occupancy.Detection
	err     error
}

func (d *fakeDetector) Detect(_ context.Context, _ []byte, _ float64) ([]occupancy.Detection, error) {
	d.calls++
	return d.results, d.err
}

func TestDispatcherRunsEveryNthFrame(t *testing.T) {
	det := &fakeDetector{results: []occupancy.Detection{detection(0, 0, 10, 10, 0.9, "car")}}
	d := NewDispatcher(det, 3, 0.5, newTestMetrics(), zerolog.Nop())

	var ranOn []int
	for frame := 1; frame <= 9; frame++ {
		_, ran := d.Dispatch(context.Background(), []byte("jpeg"))
		if ran {
			ranOn = append(ranOn, frame)
		}
	}

	assert.Equal(t, []int{3, 6, 9}, ranOn)
	assert.Equal(t, 3, det.calls)
}

func TestDispatcherRunsEveryFrameWhenNIsOne(t *testing.T) {
	det := &fakeDetector{}
	d := NewDispatcher(det, 1, 0.5, newTestMetrics(), zerolog.Nop())

	for frame := 0; frame < 5; frame++ {
		_, ran := d.Dispatch(context.Background(), []byte("jpeg"))
		assert.True(t, ran)
	}
	assert.Equal(t, 5, det.calls)
}

func TestDispatcherSkipCyclesReuseCachedDetections(t *testing.T) {
	det := &fakeDetector{results: []occupancy.Detection{detection(0, 0, 10, 10, 0.9, "car")}}
	d := NewDispatcher(det, 2, 0.5, newTestMetrics(), zerolog.Nop())

	// Frame 1: skip, nothing cached yet.
	dets, ran := d.Dispatch(context.Background(), []byte("jpeg"))
	assert.False(t, ran)
	assert.Empty(t, dets)

	// Frame 2: run.
	dets, ran = d.Dispatch(context.Background(), []byte("jpeg"))
	assert.True(t, ran)
	require.Len(t, dets, 1)

	// Frame 3: skip, cached run result is reused, not treated as empty.
	dets, ran = d.Dispatch(context.Background(), []byte("jpeg"))
	assert.False(t, ran)
	require.Len(t, dets, 1)
	assert.Equal(t, "car", dets[0].Class)
	assert.Equal(t, 1, det.calls)
}

func TestDispatcherFailureDegradesToZeroDetections(t *testing.T) {
	det := &fakeDetector{
		results: []occupancy.Detection{detection(0, 0, 10, 10, 0.9, "car")},
		err:     errors.New("inference service down"),
	}
	d := NewDispatcher(det, 1, 0.5, newTestMetrics(), zerolog.Nop())

	dets, ran := d.Dispatch(context.Background(), []byte("jpeg"))

	assert.True(t, ran)
	assert.Empty(t, dets)

	// A later skip cycle reuses the degraded (empty) run result.
	d2 := NewDispatcher(det, 2, 0.5, newTestMetrics(), zerolog.Nop())
	d2.Dispatch(context.Background(), []byte("jpeg"))
	d2.Dispatch(context.Background(), []byte("jpeg")) // run, fails
	dets, ran = d2.Dispatch(context.Background(), []byte("jpeg"))
	assert.False(t, ran)
	assert.Empty(t, dets)
}
