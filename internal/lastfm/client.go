package lastfm

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
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// HTTPClient implements Client against the Last.fm 2.0 API.
type HTTPClient struct {
	// BaseURL may be overridden, e.g. to point at a test server.
	BaseURL string

	apiKey string
	client *http.Client
}

func NewHTTPClient(apiKey string) *HTTPClient {
	return &HTTPClient{
		BaseURL: defaultBaseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs one API call and decodes the response body into out.
// A service-reported error payload, a non-200 status and a body that
// fails to decode all surface as *RemoteError.
func (c *HTTPClient) get(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return &RemoteError{Method: method, Err: err}
	}
	req.Header.Set("User-Agent", "lastgraph/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return &RemoteError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &RemoteError{Method: method, Err: err}
	}

	// The service reports errors in-band; check before the status code
	// because some error payloads arrive with HTTP 200.
	var fail struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &fail); err == nil && fail.Error != 0 {
		return &RemoteError{Method: method, Code: fail.Error, Err: fmt.Errorf("%s", fail.Message)}
	}

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Method: method, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &RemoteError{Method: method, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// number accepts the string-encoded integers the API is fond of
// ("playcount": "12345") as well as plain JSON numbers.
type number int64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some counters arrive in scientific notation.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int64(f)
	}
	*n = number(v)
	return nil
}

// list tolerates the API quirk of returning a bare object instead of a
// one-element array when a collection holds a single item.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(data []byte) error {
	var many []T
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = []T{one}
	return nil
}

func (c *HTTPClient) UserInfo(ctx context.Context, name string) (*User, error) {
	var payload struct {
		User struct {
			Name       string `json:"name"`
			Age        number `json:"age"`
			Country    string `json:"country"`
			Gender     string `json:"gender"`
			Playcount  number `json:"playcount"`
			Subscriber number `json:"subscriber"`
		} `json:"user"`
	}
	if err := c.get(ctx, "user.getinfo", url.Values{"user": {name}}, &payload); err != nil {
		return nil, err
	}

	u := &User{
		Name:       payload.User.Name,
		Age:        int(payload.User.Age),
		Country:    payload.User.Country,
		Gender:     payload.User.Gender,
		Playcount:  int64(payload.User.Playcount),
		Subscriber: payload.User.Subscriber != 0,
	}
	// The service uses "None" as a null country.
	if u.Country == "None" {
		u.Country = ""
	}
	return u, nil
}

func (c *HTTPClient) Friends(ctx context.Context, name string, limit int) ([]string, error) {
	var payload struct {
		Friends struct {
			User list[struct {
				Name string `json:"name"`
			}] `json:"user"`
		} `json:"friends"`
	}
	params := url.Values{"user": {name}, "limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, "user.getfriends", params, &payload); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(payload.Friends.User))
	for _, f := range payload.Friends.User {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	return names, nil
}

func (c *HTTPClient) WeeklyChartList(ctx context.Context, name string) ([]WeekRange, error) {
	var payload struct {
		WeeklyChartList struct {
			Chart list[struct {
				From number `json:"from"`
				To   number `json:"to"`
			}] `json:"chart"`
		} `json:"weeklychartlist"`
	}
	if err := c.get(ctx, "user.getweeklychartlist", url.Values{"user": {name}}, &payload); err != nil {
		return nil, err
	}

	weeks := make([]WeekRange, 0, len(payload.WeeklyChartList.Chart))
	for _, w := range payload.WeeklyChartList.Chart {
		weeks = append(weeks, WeekRange{From: int64(w.From), To: int64(w.To)})
	}
	return weeks, nil
}

func (c *HTTPClient) WeeklyArtistChart(ctx context.Context, name string, from, to int64) ([]ChartEntry, error) {
	var payload struct {
		WeeklyArtistChart struct {
			Artist list[struct {
				Name      string `json:"name"`
				Playcount number `json:"playcount"`
			}] `json:"artist"`
		} `json:"weeklyartistchart"`
	}
	params := url.Values{
		"user": {name},
		"from": {strconv.FormatInt(from, 10)},
		"to":   {strconv.FormatInt(to, 10)},
	}
	if err := c.get(ctx, "user.getweeklyartistchart", params, &payload); err != nil {
		return nil, err
	}

	entries := make([]ChartEntry, 0, len(payload.WeeklyArtistChart.Artist))
	for _, a := range payload.WeeklyArtistChart.Artist {
		entries = append(entries, ChartEntry{Artist: a.Name, Playcount: int64(a.Playcount)})
	}
	return entries, nil
}

func (c *HTTPClient) ArtistInfo(ctx context.Context, name string) (*Artist, error) {
	var payload struct {
		Artist struct {
			Name  string `json:"name"`
			MBID  string `json:"mbid"`
			Stats struct {
				Listeners number `json:"listeners"`
				Playcount number `json:"playcount"`
			} `json:"stats"`
			Tags struct {
				Tag list[struct {
					Name string `json:"name"`
				}] `json:"tag"`
			} `json:"tags"`
		} `json:"artist"`
	}
	if err := c.get(ctx, "artist.getinfo", url.Values{"artist": {name}}, &payload); err != nil {
		return nil, err
	}

	a := &Artist{
		Name:      payload.Artist.Name,
		MBID:      payload.Artist.MBID,
		Playcount: int64(payload.Artist.Stats.Playcount),
		Listeners: int64(payload.Artist.Stats.Listeners),
	}
	for _, t := range payload.Artist.Tags.Tag {
		if t.Name != "" {
			a.Tags = append(a.Tags, t.Name)
		}
	}
	return a, nil
}
