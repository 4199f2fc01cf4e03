package lastfm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lastgraph/internal/lastfm"
)

// fixtureServer serves canned JSON keyed by the method query param.
func fixtureServer(t *testing.T, fixtures map[string]string) *lastfm.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Query().Get("method")
		body, ok := fixtures[method]
		if !ok {
			t.Errorf("unexpected API method %q", method)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c := lastfm.NewHTTPClient("test-key")
	c.BaseURL = srv.URL
	return c
}

func TestUserInfo(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"user.getinfo": `{"user":{"name":"RJ","age":"28","country":"United Kingdom",
			"gender":"m","playcount":"123456","subscriber":"1"}}`,
	})

	u, err := c.UserInfo(context.Background(), "RJ")
	require.NoError(t, err)
	assert.Equal(t, "RJ", u.Name)
	assert.Equal(t, 28, u.Age)
	assert.Equal(t, "United Kingdom", u.Country)
	assert.Equal(t, "m", u.Gender)
	assert.Equal(t, int64(123456), u.Playcount)
	assert.True(t, u.Subscriber)
}

func TestUserInfoOptionalFieldsAbsent(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"user.getinfo": `{"user":{"name":"ghost","age":"","country":"None",
			"playcount":"0","subscriber":"0"}}`,
	})

	u, err := c.UserInfo(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, u.Age)
	assert.Empty(t, u.Country)
	assert.Empty(t, u.Gender)
	assert.False(t, u.Subscriber)
}

func TestFriendsSingleItemQuirk(t *testing.T) {
	// The API returns a bare object instead of a one-element array.
	c := fixtureServer(t, map[string]string{
		"user.getfriends": `{"friends":{"user":{"name":"lonely_friend"}}}`,
	})

	names, err := c.Friends(context.Background(), "RJ", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"lonely_friend"}, names)
}

func TestFriendsList(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"user.getfriends": `{"friends":{"user":[{"name":"alice"},{"name":"bob"}]}}`,
	})

	names, err := c.Friends(context.Background(), "RJ", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestWeeklyChartList(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"user.getweeklychartlist": `{"weeklychartlist":{"chart":[
			{"from":"1353196800","to":"1353801600"},
			{"from":"1353801600","to":"1354406400"}]}}`,
	})

	weeks, err := c.WeeklyChartList(context.Background(), "RJ")
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, lastfm.WeekRange{From: 1353196800, To: 1353801600}, weeks[0])
	assert.Equal(t, lastfm.WeekRange{From: 1353801600, To: 1354406400}, weeks[1])
}

func TestWeeklyArtistChart(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"user.getweeklyartistchart": `{"weeklyartistchart":{"artist":[
			{"name":"Kraftwerk","playcount":"42"},
			{"name":"Neu!","playcount":7}]}}`,
	})

	entries, err := c.WeeklyArtistChart(context.Background(), "RJ", 1353196800, 1353801600)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, lastfm.ChartEntry{Artist: "Kraftwerk", Playcount: 42}, entries[0])
	assert.Equal(t, lastfm.ChartEntry{Artist: "Neu!", Playcount: 7}, entries[1])
}

func TestArtistInfo(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"artist.getinfo": `{"artist":{"name":"Kraftwerk","mbid":"5276b287",
			"stats":{"listeners":"900001","playcount":"31337000"},
			"tags":{"tag":[{"name":"electronic"},{"name":"krautrock"}]}}}`,
	})

	a, err := c.ArtistInfo(context.Background(), "Kraftwerk")
	require.NoError(t, err)
	assert.Equal(t, "Kraftwerk", a.Name)
	assert.Equal(t, "5276b287", a.MBID)
	assert.Equal(t, int64(31337000), a.Playcount)
	assert.Equal(t, int64(900001), a.Listeners)
	assert.Equal(t, []string{"electronic", "krautrock"}, a.Tags)
}

func TestServiceReportedError(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"user.getinfo": `{"error":6,"message":"User not found"}`,
	})

	_, err := c.UserInfo(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, lastfm.IsRemote(err))

	var re *lastfm.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 6, re.Code)
	assert.Contains(t, re.Error(), "User not found")
}

func TestMalformedResponse(t *testing.T) {
	c := fixtureServer(t, map[string]string{
		"user.getinfo": `<!doctype html><html>upstream proxy error</html>`,
	})

	_, err := c.UserInfo(context.Background(), "RJ")
	require.Error(t, err)
	assert.True(t, lastfm.IsRemote(err))
}

func TestTransportError(t *testing.T) {
	c := lastfm.NewHTTPClient("test-key")
	c.BaseURL = "http://127.0.0.1:1" // nothing listens here

	_, err := c.UserInfo(context.Background(), "RJ")
	require.Error(t, err)
	assert.True(t, lastfm.IsRemote(err), "transport failures are remote failures")
}
