// Package detect is the boundary to the external object detector. The model
// itself runs behind an HTTP inference endpoint; this package only speaks the
// wire protocol.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"parkvision-service/internal/domain/occupancy"
)

// Detector runs object detection on one encoded frame. A call may fail; the
// caller treats failure as an empty result and keeps going.
type Detector interface {
	Detect(ctx context.Context, frameJPEG []byte, confidenceThreshold float64) ([]occupancy.Detection, error)
}

// HTTPDetector posts JPEG frames to a YOLO inference service.
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDetector(endpoint string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type wireDetection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
}

func (d *HTTPDetector) Detect(ctx context.Context, frameJPEG []byte, confidenceThreshold float64) ([]occupancy.Detection, error) {
	url := d.endpoint + "/detect?confidence=" + strconv.FormatFloat(confidenceThreshold, 'f', -1, 64)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(frameJPEG))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned %s: %s", resp.Status, body)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}

	detections := make([]occupancy.Detection, 0, len(parsed.Detections))
	for _, w := range parsed.Detections {
		detections = append(detections, occupancy.Detection{
			Box: orb.Bound{
				Min: orb.Point{w.Box[0], w.Box[1]},
				Max: orb.Point{w.Box[2], w.Box[3]},
			},
			Confidence: w.Confidence,
			Class:      w.Class,
		})
	}
	return detections, nil
}
