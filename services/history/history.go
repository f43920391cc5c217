package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kwanifi/ratewatch/dmodels"
	"github.com/kwanifi/ratewatch/log"
)

const Path = "/rate/history"

// maxBodySize guards against an upstream that never stops writing.
const maxBodySize = 32 << 20

var ErrFetchFailed = errors.New("fetch history failed")

type (
	Fetcher interface {
		Fetch(ctx context.Context) (dmodels.Series, error)
	}

	HTTPFetcher struct {
		client  *http.Client
		url     string
		timeout time.Duration
	}
)

// NewFetcher builds a fetcher for {apiBase}/rate/history. A zero timeout
// leaves the request bounded only by ctx.
func NewFetcher(client *http.Client, apiBase string, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		client:  client,
		url:     apiBase + Path,
		timeout: timeout,
	}
}

// Fetch returns the full historical series. Every failure wraps ErrFetchFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context) (dmodels.Series, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: http.NewRequest: %s", ErrFetchFailed, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: client.Do: %s", ErrFetchFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %s", ErrFetchFailed, err.Error())
	}
	series, dropped, err := dmodels.DecodeSeries(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, err.Error())
	}
	if dropped > 0 {
		log.Warn("history Fetch: dropped %d malformed samples", dropped)
	}
	log.Debug("history Fetch: %d samples from %s", len(series), f.url)
	return series, nil
}
