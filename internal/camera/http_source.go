package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

const maxFetchAttempts = 3

// HTTPSource reads frames from a network camera snapshot endpoint.
// Every Read issues one GET.
type HTTPSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
	backoff func(attempt int) time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewHTTPSource creates a snapshot source with the default transport
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	transport := &http.Transport{
		MaxIdleConns:           4,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    5 * time.Second,
		ResponseHeaderTimeout:  timeout,
		MaxResponseHeaderBytes: 4096,
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		timeout: timeout,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (h *HTTPSource) Describe() string {
	return "network camera " + h.url
}

func (h *HTTPSource) Release() error {
	h.once.Do(func() {
		h.cancel()
		h.client.CloseIdleConnections()
	})
	return nil
}

func (h *HTTPSource) Read() (models.Frame, error) {
	img, err := h.fetch()
	if err != nil {
		return models.Frame{}, apperrors.NewDeviceError(apperrors.CodeNoFrame, "snapshot fetch failed", err)
	}
	return models.NewFrame(img, h.Describe(), h.now()), nil
}

// fetch retries transient failures; 4xx responses are returned at once
func (h *HTTPSource) fetch() (image.Image, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		img, retry, err := h.fetchOnce()
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !retry {
			break
		}

		if attempt < maxFetchAttempts-1 {
			select {
			case <-h.ctx.Done():
				return nil, h.ctx.Err()
			case <-time.After(h.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch snapshot after %d attempts: %w", maxFetchAttempts, lastErr)
}

func (h *HTTPSource) fetchOnce() (img image.Image, retry bool, err error) {
	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "labelstation/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, h.ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	img, _, err = image.Decode(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return img, false, nil
}
