package display

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxImageSize caps a downloaded tooltip image.
const maxImageSize = 10 << 20

// HTTPImageLoader downloads campaign images.
type HTTPImageLoader struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPImageLoader creates a loader with a per-request timeout.
func NewHTTPImageLoader(timeout time.Duration) *HTTPImageLoader {
	return &HTTPImageLoader{
		client:  &http.Client{},
		timeout: timeout,
	}
}

// Load fetches url. It fails on non-2xx responses and oversized bodies.
func (l *HTTPImageLoader) Load(ctx context.Context, url string) ([]byte, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageSize)
	}
	return data, nil
}
