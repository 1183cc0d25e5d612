package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkvision-service/internal/domain/occupancy"
	"parkvision-service/internal/observability"
)

func encodeTestFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 90, G: 90, B: 90, A: 255}}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func runPipeline(t *testing.T, stream []byte, det *fakeDetector, sink *recordingSink, metrics *observability.Metrics) *Pipeline {
	t.Helper()

	pl := New(Options{
		Zones:               testZones(),
		Source:              &fakeSource{connections: [][]byte{stream}},
		Detector:            det,
		Sink:                sink,
		ConfidenceThreshold: 0.5,
		ProcessEveryN:       1,
		VehicleClasses:      vehicleClasses,
		ReconnectBackoff:    time.Millisecond,
		Metrics:             metrics,
		Log:                 zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return pl
}

func TestPipelineEndToEnd(t *testing.T) {
	frame := encodeTestFrame(t)
	stream := append(append([]byte("preamble-noise"), frame...), frame...)

	det := &fakeDetector{results: []occupancy.Detection{detection(0, 0, 10, 10, 0.9, "car")}}
	sink := &recordingSink{}
	metrics := newTestMetrics()

	pl := runPipeline(t, stream, det, sink, metrics)

	require.Eventually(t, func() bool {
		_, _, seq := pl.Publisher().Read()
		return seq >= 2
	}, 2*time.Second, 5*time.Millisecond, "pipeline never published both cycles")

	annotated, snap, _ := pl.Publisher().Read()

	assert.Equal(t, occupancy.StatusOccupied, snap["A1"].Status)
	assert.Equal(t, occupancy.StatusAvailable, snap["A2"].Status)

	// Exactly one transition across two identical cycles.
	require.Len(t, sink.events, 1)
	assert.Equal(t, "A1", sink.events[0].ZoneID)
	assert.Equal(t, occupancy.StatusAvailable, sink.events[0].Previous)
	assert.Equal(t, occupancy.StatusOccupied, sink.events[0].New)

	// Published frames are valid annotated JPEGs.
	_, err := jpeg.Decode(bytes.NewReader(annotated))
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.FramesProcessed))
}

func TestPipelineDropsCorruptPayloadAndContinues(t *testing.T) {
	corrupt := jpegMarkers(0xde, 0xad, 0xbe, 0xef) // valid markers, undecodable body
	frame := encodeTestFrame(t)
	stream := append(append([]byte{}, corrupt...), frame...)

	det := &fakeDetector{}
	sink := &recordingSink{}
	metrics := newTestMetrics()

	pl := runPipeline(t, stream, det, sink, metrics)

	require.Eventually(t, func() bool {
		_, _, seq := pl.Publisher().Read()
		return seq >= 1
	}, 2*time.Second, 5*time.Millisecond, "valid frame after corrupt payload never published")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FramesDropped))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FramesProcessed))
}
