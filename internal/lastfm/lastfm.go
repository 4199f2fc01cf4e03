// Package lastfm talks to the Last.fm web service. The Client interface
// is the surface the crawler depends on; HTTPClient implements it
// against the 2.0 JSON API.
package lastfm

import (
	"context"
	"errors"
	"fmt"
)

// User is the profile data collected for a visited user. Age, Country
// and Gender are optional and left zero when the service omits them.
type User struct {
	Name       string
	Age        int
	Country    string
	Gender     string
	Playcount  int64
	Subscriber bool
}

// Artist is the enrichment data collected when an artist is first seen.
type Artist struct {
	Name      string
	MBID      string
	Playcount int64
	Listeners int64
	YearFrom  int
	YearTo    int
	Tags      []string
}

// WeekRange is one reporting interval from the weekly chart calendar.
// Boundaries are unix timestamps as reported by the service.
type WeekRange struct {
	From int64
	To   int64
}

// ChartEntry is one (artist, playcount) pair from a weekly chart.
type ChartEntry struct {
	Artist    string
	Playcount int64
}

// Client is the remote collaborator contract.
type Client interface {
	UserInfo(ctx context.Context, name string) (*User, error)
	Friends(ctx context.Context, name string, limit int) ([]string, error)
	WeeklyChartList(ctx context.Context, name string) ([]WeekRange, error)
	WeeklyArtistChart(ctx context.Context, name string, from, to int64) ([]ChartEntry, error)
	ArtistInfo(ctx context.Context, name string) (*Artist, error)
}

// RemoteError covers every failure mode of the remote service: network
// errors, malformed responses and service-reported errors. The crawler
// treats all of them as transient and counts them against its error
// budget. Code is the Last.fm error code when the service reported one,
// zero otherwise.
type RemoteError struct {
	Method string
	Code   int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("lastfm %s: service error %d: %v", e.Method, e.Code, e.Err)
	}
	return fmt.Sprintf("lastfm %s: %v", e.Method, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err originates from the remote service.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
