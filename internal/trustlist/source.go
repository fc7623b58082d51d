package trustlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Source fetches the curated trusted-account list from wherever it is
// published.
type Source interface {
	Fetch(ctx context.Context) ([]string, error)
}

// FetchError wraps a failed trusted-list fetch. Transient; the cache keeps
// serving its previous snapshot when it sees one.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch trusted list from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPSource fetches a newline-separated identifier list over HTTP, one
// account per line.
type HTTPSource struct {
	url    string
	client *resty.Client
}

// Ensure HTTPSource implements Source
var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates a source reading from the given URL.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url: url,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "RUGGUARD-Bot/1.0"),
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.url)
	if err != nil {
		return nil, &FetchError{URL: s.url, Err: err}
	}
	if resp.StatusCode() != 200 {
		return nil, &FetchError{URL: s.url, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}

	var ids []string
	for _, line := range strings.Split(string(resp.Body()), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			ids = append(ids, line)
		}
	}

	if len(ids) == 0 {
		return nil, &FetchError{URL: s.url, Err: fmt.Errorf("payload contained no identifiers")}
	}

	return ids, nil
}
