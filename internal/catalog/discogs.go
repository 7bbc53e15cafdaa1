// Package catalog holds catalog helpers: canonical genres and the Discogs
// barcode lookup used by admins when adding listings.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoMatch is returned when Discogs knows no release for a barcode.
var ErrNoMatch = errors.New("no release found for barcode")

const defaultDiscogsURL = "https://api.discogs.com"

// Suggestion pre-fills a new listing from a Discogs release.
type Suggestion struct {
	UPC         string `json:"upc"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Genre       string `json:"genre"`
	ImageURL    string `json:"imageUrl"`
	ReleaseYear *int   `json:"releaseYear"`
	Country     string `json:"country"`
	DiscogsID   int64  `json:"discogsId"`
}

type discogsResult struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Country    string   `json:"country"`
	Year       string   `json:"year"`
	CoverImage string   `json:"cover_image"`
	Genre      []string `json:"genre"`
	Style      []string `json:"style"`
}

type discogsSearch struct {
	Results []discogsResult `json:"results"`
}

// DiscogsClient queries the Discogs database search API.
type DiscogsClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewDiscogsClient returns a client authenticating with token. baseURL may
// be empty to use the public API.
func NewDiscogsClient(token, baseURL string) *DiscogsClient {
	if baseURL == "" {
		baseURL = defaultDiscogsURL
	}
	return &DiscogsClient{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 8 * time.Second},
	}
}

// LookupBarcode finds the release for upc, preferring a US pressing.
func (c *DiscogsClient) LookupBarcode(ctx context.Context, upc string) (Suggestion, error) {
	upc = strings.TrimSpace(upc)
	if upc == "" {
		return Suggestion{}, errors.New("upc is required")
	}
	q := url.Values{}
	q.Set("barcode", upc)
	q.Set("type", "release")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/database/search?"+q.Encode(), nil)
	if err != nil {
		return Suggestion{}, err
	}
	req.Header.Set("User-Agent", "VinylverseStorefront/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("discogs request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Suggestion{}, fmt.Errorf("discogs status %d", resp.StatusCode)
	}
	var body discogsSearch
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Suggestion{}, fmt.Errorf("discogs decode: %w", err)
	}
	if len(body.Results) == 0 {
		return Suggestion{}, ErrNoMatch
	}

	release := body.Results[0]
	for _, r := range body.Results {
		if r.Country == "US" {
			release = r
			break
		}
	}
	return suggestionFrom(upc, release), nil
}

func suggestionFrom(upc string, r discogsResult) Suggestion {
	artist, title := SplitReleaseTitle(r.Title)
	s := Suggestion{
		UPC:       upc,
		Title:     title,
		Artist:    artist,
		Genre:     BestFitGenre(append(append([]string{}, r.Genre...), r.Style...)...),
		ImageURL:  r.CoverImage,
		Country:   r.Country,
		DiscogsID: r.ID,
	}
	if y, err := strconv.Atoi(strings.TrimSpace(r.Year)); err == nil && y > 0 {
		s.ReleaseYear = &y
	}
	return s
}

// SplitReleaseTitle splits Discogs' "Artist - Title" into its parts. A
// title without the separator has no artist.
func SplitReleaseTitle(full string) (artist, title string) {
	parts := strings.Split(full, " - ")
	if len(parts) < 2 {
		return "", strings.TrimSpace(full)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(strings.Join(parts[1:], " - "))
}
