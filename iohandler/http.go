package iohandler

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// OpenURL issues a GET request for url and streams the response body into a
// Stream. The response Content-Length, if any, becomes the stream size.
func OpenURL(ctx context.Context, client *http.Client, url string, timeout time.Duration) (*Stream, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "iohandler.OpenURL")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "iohandler.OpenURL")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("iohandler.OpenURL: unexpected status %q", resp.Status)
	}
	size := resp.ContentLength
	if size < 0 {
		size = UnknownSize
	}
	return NewStream(ctx, resp.Body, size, timeout), nil
}
