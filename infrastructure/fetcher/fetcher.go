package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPFetcher downloads source documents. It does not judge the payload;
// whether the bytes are a valid document is the converter's call.
type HTTPFetcher struct {
	client     *http.Client
	authHeader string
	maxSize    int64
}

func NewHTTPFetcher(timeout time.Duration, authHeader string, maxSize int64) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		authHeader: authHeader,
		maxSize:    maxSize,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}
	if f.authHeader != "" {
		req.Header.Set("Authorization", f.authHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.maxSize > 0 {
		body = io.LimitReader(resp.Body, f.maxSize+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", url, err)
	}
	if f.maxSize > 0 && int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("fetching %s: document exceeds the %d byte limit", url, f.maxSize)
	}

	logrus.Debugf("[FETCHER] Downloaded %d bytes from %s", len(data), url)
	return data, nil
}
