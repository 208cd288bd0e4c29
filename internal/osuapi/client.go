// Package osuapi is the HTTP client for the osu! web API v2, the external
// beatmap catalog behind beatmap.Provider. Only the endpoints the bot needs
// are covered: beatmapset search, beatmap lookup, and beatmapset lookup.
package osuapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/astrolabio1417/legacy-osu-bot/internal/beatmap"
	"github.com/astrolabio1417/legacy-osu-bot/internal/osu"
)

const (
	defaultBaseURL  = "https://osu.ppy.sh"
	tokenPath       = "/oauth/token"
	apiPrefix       = "/api/v2"
	requestTimeout  = 15 * time.Second
	tokenExpirySlop = 30 * time.Second
)

// Client authenticates with the client-credentials grant and caches the
// bearer token until shortly before it expires.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     int
	clientSecret string
	log          *zap.SugaredLogger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(clientID int, clientSecret string, log *zap.SugaredLogger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: requestTimeout},
		baseURL:      defaultBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		log:          log,
	}
}

// WithBaseURL points the client at a different host, used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = strings.TrimSuffix(base, "/")
	return c
}

func (c *Client) ensureToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {strconv.Itoa(c.clientID)},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"public"},
	}
	resp, err := c.httpClient.PostForm(c.baseURL+tokenPath, form)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d", resp.StatusCode)
	}

	c.token = gjson.GetBytes(body, "access_token").String()
	if c.token == "" {
		return "", fmt.Errorf("token request: empty access_token")
	}
	expiresIn := gjson.GetBytes(body, "expires_in").Int()
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn)*time.Second - tokenExpirySlop)
	return c.token, nil
}

func (c *Client) get(path string, query url.Values) ([]byte, error) {
	token, err := c.ensureToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, c.baseURL+apiPrefix+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}

// SearchBeatmapsets pages through the catalog, most-played first, with the
// genre/language/mode filters applied server-side. The returned cursor feeds
// the next page; empty means the catalog is exhausted.
func (c *Client) SearchBeatmapsets(filters beatmap.Filters, cursor string) ([]osu.Beatmapset, string, error) {
	query := url.Values{
		"m":    {strconv.Itoa(int(filters.PlayMode))},
		"sort": {"plays_desc"},
	}
	if filters.Genre != osu.AnyGenre {
		query.Set("g", strconv.Itoa(int(filters.Genre)))
	}
	if filters.Language != osu.AnyLanguage {
		query.Set("l", strconv.Itoa(int(filters.Language)))
	}
	if cursor != "" {
		query.Set("cursor_string", cursor)
	}

	body, err := c.get("/beatmapsets/search", query)
	if err != nil {
		return nil, "", err
	}

	var sets []osu.Beatmapset
	gjson.GetBytes(body, "beatmapsets").ForEach(func(_, value gjson.Result) bool {
		sets = append(sets, parseBeatmapset(value))
		return true
	})
	return sets, gjson.GetBytes(body, "cursor_string").String(), nil
}

// Beatmap fetches one difficulty by id.
func (c *Client) Beatmap(id int) (osu.Beatmap, error) {
	body, err := c.get(fmt.Sprintf("/beatmaps/%d", id), url.Values{})
	if err != nil {
		return osu.Beatmap{}, err
	}
	b := parseBeatmap(gjson.ParseBytes(body))
	set := gjson.GetBytes(body, "beatmapset")
	b.Title = set.Get("title").String()
	b.Artist = set.Get("artist").String()
	return b, nil
}

// Beatmapset fetches a full set, difficulties included.
func (c *Client) Beatmapset(id int) (osu.Beatmapset, error) {
	body, err := c.get(fmt.Sprintf("/beatmapsets/%d", id), url.Values{})
	if err != nil {
		return osu.Beatmapset{}, err
	}
	return parseBeatmapset(gjson.ParseBytes(body)), nil
}

func parseBeatmapset(v gjson.Result) osu.Beatmapset {
	set := osu.Beatmapset{
		ID:       int(v.Get("id").Int()),
		Title:    v.Get("title").String(),
		Artist:   v.Get("artist").String(),
		Genre:    osu.Genre(v.Get("genre.id").Int()),
		Language: osu.Language(v.Get("language.id").Int()),
	}
	v.Get("beatmaps").ForEach(func(_, b gjson.Result) bool {
		set.Beatmaps = append(set.Beatmaps, parseBeatmap(b))
		return true
	})
	return set
}

func parseBeatmap(v gjson.Result) osu.Beatmap {
	return osu.Beatmap{
		ID:           int(v.Get("id").Int()),
		BeatmapsetID: int(v.Get("beatmapset_id").Int()),
		Mode:         osu.PlayMode(v.Get("mode_int").Int()),
		Star:         v.Get("difficulty_rating").Float(),
		AR:           v.Get("ar").Float(),
		CS:           v.Get("cs").Float(),
		BPM:          v.Get("bpm").Float(),
		TotalLength:  int(v.Get("total_length").Int()),
		Status:       osu.RankStatus(v.Get("ranked").Int()),
		Version:      v.Get("version").String(),
		URL:          v.Get("url").String(),
	}
}
