package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/scheduler"
)

// maxFetchSize bounds a fallback read.
const maxFetchSize = 16 << 20

// Fetcher reads a URI directly when it is not part of the active content.
// Reads run on the scheduler's workers and are bounded by Timeout.
type Fetcher struct {
	schedule *scheduler.Scheduler
	client   *http.Client
	timeout  time.Duration
}

func NewFetcher(schedule *scheduler.Scheduler, timeout time.Duration) *Fetcher {
	return &Fetcher{
		schedule: schedule,
		client:   &http.Client{},
		timeout:  timeout,
	}
}

type fetchResult struct {
	text string
	err  error
}

// Fetch reads uri. Supported schemes are file, http and https.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result := make(chan fetchResult, 1)
	err := f.schedule.Submit(ctx, scheduler.Task{
		Name: "fetch " + uri,
		Execute: func() error {
			text, err := f.fetch(ctx, uri)
			result <- fetchResult{text: text, err: err}
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", uri, err)
	}

	select {
	case r := <-result:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("fetch %s: %w", uri, ctx.Err())
	}
}

func (f *Fetcher) fetch(ctx context.Context, uri string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse uri: %w", err)
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return "", err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status %s", resp.Status)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
		if err != nil {
			return "", err
		}
		return string(data), nil

	default:
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
}

// Reader serves a URI from the store, falling back to the fetcher. Fetch
// failures are logged and reported as absent.
type Reader struct {
	store   *content.Store
	fetcher *Fetcher
}

func NewReader(store *content.Store, fetcher *Fetcher) *Reader {
	return &Reader{store: store, fetcher: fetcher}
}

func (r *Reader) ReadURI(ctx context.Context, uri string) (Source, bool) {
	if e, ok := r.store.Get(uri); ok {
		return Source{URI: uri, Content: e.Content, Generation: e.Generation}, true
	}
	if r.fetcher == nil {
		return Source{}, false
	}

	text, err := r.fetcher.Fetch(ctx, uri)
	if err != nil {
		log.Warningf("error opening stream for: %s: %s", uri, err)
		return Source{}, false
	}
	return Source{URI: uri, Content: text}, true
}
