package mjpeg

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Source opens a raw MJPEG byte stream. Implementations must return a body
// whose reads unblock when ctx is cancelled.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// HTTPSource connects to a long-lived HTTP camera stream (e.g. an ESP32-CAM
// multipart endpoint). The connect timeout bounds dialing and response
// headers only; the body is read for the lifetime of the connection.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(rawURL string, connectTimeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url: rawURL,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				ResponseHeaderTimeout: connectTimeout,
			},
		},
	}
}

func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", s.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("connect to %s: unexpected status %s", s.url, resp.Status)
	}
	return resp.Body, nil
}
