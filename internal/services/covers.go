package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrNoCover means the catalog answered but had no usable cover for the title
var ErrNoCover = errors.New("no cover found")

// CoverFinder looks up a cover image URL for a book title in an external catalog
type CoverFinder interface {
	Name() string
	FindCover(ctx context.Context, title string) (string, error)
}

// newCatalogBreaker trips after five consecutive upstream failures and probes again after
// thirty seconds. An empty result is not a failure.
func newCatalogBreaker(name string) *gobreaker.CircuitBreaker[string] {
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoCover)
		},
	})
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GoogleBooksFinder queries the Google Books volumes API
type GoogleBooksFinder struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
}

// NewGoogleBooksFinder creates a finder for endpoint, e.g. https://www.googleapis.com/books/v1/volumes
func NewGoogleBooksFinder(endpoint string, client *http.Client) *GoogleBooksFinder {
	return &GoogleBooksFinder{
		endpoint: endpoint,
		client:   client,
		breaker:  newCatalogBreaker("google-books"),
	}
}

func (f *GoogleBooksFinder) Name() string { return "google_books" }

type googleVolumes struct {
	Items []struct {
		VolumeInfo struct {
			ImageLinks struct {
				Thumbnail      string `json:"thumbnail"`
				SmallThumbnail string `json:"smallThumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// FindCover returns the thumbnail of the first matching volume
func (f *GoogleBooksFinder) FindCover(ctx context.Context, title string) (string, error) {
	return f.breaker.Execute(func() (string, error) {
		var body googleVolumes
		if err := getJSON(ctx, f.client, f.endpoint+"?q="+url.QueryEscape(title), &body); err != nil {
			return "", err
		}
		if len(body.Items) == 0 {
			return "", ErrNoCover
		}
		links := body.Items[0].VolumeInfo.ImageLinks
		switch {
		case links.Thumbnail != "":
			return links.Thumbnail, nil
		case links.SmallThumbnail != "":
			return links.SmallThumbnail, nil
		}
		return "", ErrNoCover
	})
}

// OpenLibraryFinder queries the Open Library search API and builds a covers URL
type OpenLibraryFinder struct {
	searchURL string
	coverURL  string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[string]
}

// NewOpenLibraryFinder creates a finder. coverURL is the covers prefix, e.g. https://covers.openlibrary.org/b/id
func NewOpenLibraryFinder(searchURL, coverURL string, client *http.Client) *OpenLibraryFinder {
	return &OpenLibraryFinder{
		searchURL: searchURL,
		coverURL:  strings.TrimSuffix(coverURL, "/"),
		client:    client,
		breaker:   newCatalogBreaker("open-library"),
	}
}

func (f *OpenLibraryFinder) Name() string { return "open_library" }

type openLibrarySearch struct {
	Docs []struct {
		CoverID int64 `json:"cover_i"`
	} `json:"docs"`
}

// FindCover returns the large cover of the first matching document
func (f *OpenLibraryFinder) FindCover(ctx context.Context, title string) (string, error) {
	return f.breaker.Execute(func() (string, error) {
		var body openLibrarySearch
		if err := getJSON(ctx, f.client, f.searchURL+"?title="+url.QueryEscape(title), &body); err != nil {
			return "", err
		}
		if len(body.Docs) == 0 || body.Docs[0].CoverID == 0 {
			return "", ErrNoCover
		}
		return fmt.Sprintf("%s/%d-L.jpg", f.coverURL, body.Docs[0].CoverID), nil
	})
}
