package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"addressbook/internal/models"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "addressbook/1.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// Nominatim talks to an OpenStreetMap Nominatim compatible endpoint. Requests
// are throttled client side because the public instance allows about one
// request per second.
type Nominatim struct {
	BaseURL    string
	UserAgent  string
	Country    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatim returns a client. A non-positive ratePerSec disables throttling.
func NewNominatim(baseURL, userAgent, country string, ratePerSec float64) *Nominatim {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &Nominatim{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserAgent:  userAgent,
		Country:    country,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    limiter,
	}
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Error       string `json:"error"`
}

func (p nominatimPlace) coordinates() (models.Coordinates, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim: bad lat %q", p.Lat)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim: bad lon %q", p.Lon)
	}
	return models.NewCoordinates(lng, lat), nil
}

func (n *Nominatim) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	q := strings.TrimSpace(query)
	if n.Country != "" {
		q = q + ", " + n.Country
	}
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", q)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var places []nominatimPlace
	if err := n.get(ctx, "/search", params, &places); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(places))
	for _, p := range places {
		coords, err := p.coordinates()
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{Text: p.DisplayName, Coordinates: coords})
	}
	return out, nil
}

func (n *Nominatim) Reverse(ctx context.Context, at models.Coordinates) (string, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(at.Lat(), 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(at.Lng(), 'f', -1, 64))

	var place nominatimPlace
	if err := n.get(ctx, "/reverse", params, &place); err != nil {
		return "", err
	}
	if place.Error != "" || strings.TrimSpace(place.DisplayName) == "" {
		return "", models.ErrUnresolvable
	}
	return place.DisplayName, nil
}

func (n *Nominatim) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", n.UserAgent)

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("nominatim: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("nominatim: decode %s: %w", path, err)
	}
	return nil
}
