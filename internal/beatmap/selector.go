// Package beatmap holds the per-room beatmap policy: numeric range filters,
// a ranked-status allow-list, and the rotation queue the room pulls from.
package beatmap

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/astrolabio1417/legacy-osu-bot/internal/osu"
)

// The queue is topped back up whenever rotation leaves fewer than this many
// candidates.
const lowWater = 3

// Played when the queue is empty and the fallback set could not be fetched.
const defaultBeatmapsetID = 2005593

// Range is an inclusive [Min,Max] filter over a float attribute.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) contains(v float64) bool { return r.Min <= v && v <= r.Max }

// IntRange is an inclusive [Min,Max] filter over an int attribute.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r IntRange) contains(v int) bool { return r.Min <= v && v <= r.Max }

// Filters is the full candidate-acceptance policy.
type Filters struct {
	PlayMode   osu.PlayMode
	Star       Range
	AR         Range
	CS         Range
	Length     IntRange
	BPM        IntRange
	RankStatus []osu.RankStatus
	Genre      osu.Genre
	Language   osu.Language
}

// DefaultFilters accepts nearly everything, matching a fresh lobby.
func DefaultFilters() Filters {
	return Filters{
		PlayMode:   osu.Osu,
		Star:       Range{0, 10},
		AR:         Range{0, 10},
		CS:         Range{0, 10},
		Length:     IntRange{0, 1000000},
		BPM:        IntRange{0, 200},
		RankStatus: osu.AllRankStatuses(),
		Genre:      osu.AnyGenre,
		Language:   osu.AnyLanguage,
	}
}

// Provider is the external beatmap catalog. Implemented by osuapi; tests use
// fakes.
type Provider interface {
	SearchBeatmapsets(filters Filters, cursor string) ([]osu.Beatmapset, string, error)
	Beatmap(id int) (osu.Beatmap, error)
	Beatmapset(id int) (osu.Beatmapset, error)
}

// Selector owns the rotation queue for one room. Safe for use from the
// dispatch loop and the background replenisher concurrently.
type Selector struct {
	provider Provider
	log      *zap.SugaredLogger

	mu       sync.Mutex
	filters  Filters
	queue    []osu.Beatmap
	cursor   string
	fallback osu.Beatmap

	replenish singleflight.Group
}

// Data is the JSON-able selector snapshot served by the admin API.
type Data struct {
	PlayMode   string       `json:"play_mode"`
	Star       Range        `json:"star"`
	AR         Range        `json:"ar"`
	CS         Range        `json:"cs"`
	Length     IntRange     `json:"length"`
	BPM        IntRange     `json:"bpm"`
	RankStatus []string     `json:"rank_status"`
	Genre      string       `json:"genre"`
	Language   string       `json:"language"`
	Current    osu.Beatmap  `json:"current"`
	Lists      []osu.Beatmap `json:"lists"`
}

func NewSelector(provider Provider, filters Filters, log *zap.SugaredLogger) *Selector {
	return &Selector{provider: provider, filters: filters, log: log}
}

// Current is the enforced beatmap: the queue head, or the fallback when the
// queue is empty.
func (s *Selector) Current() osu.Beatmap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Selector) currentLocked() osu.Beatmap {
	if len(s.queue) > 0 {
		return s.queue[0]
	}
	if s.fallback.ID == 0 {
		s.fallback = s.loadFallback()
	}
	return s.fallback
}

func (s *Selector) loadFallback() osu.Beatmap {
	set, err := s.provider.Beatmapset(defaultBeatmapsetID)
	if err != nil || len(set.Beatmaps) == 0 {
		s.log.Warnw("fallback beatmapset unavailable", "error", err)
		return osu.Beatmap{}
	}
	b := set.Beatmaps[0]
	b.Title, b.Artist = set.Title, set.Artist
	return b
}

// SetCurrent pins an externally chosen beatmap at the queue head.
func (s *Selector) SetCurrent(b osu.Beatmap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]osu.Beatmap{b}, s.queue...)
}

// Rotate pops the queue head and returns the new current selection. The
// refill runs in the background once the queue drops under the low-water
// mark; concurrent rotations share a single provider round-trip.
func (s *Selector) Rotate() osu.Beatmap {
	s.mu.Lock()
	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
	short := len(s.queue) < lowWater
	next := s.currentLocked()
	s.mu.Unlock()

	if short {
		go func() {
			_, _, _ = s.replenish.Do("replenish", func() (any, error) {
				s.Replenish()
				return nil, nil
			})
		}()
	}
	return next
}

// Replenish pages through provider search results, keeping at most one
// passing difficulty per set (hardest first), until the queue reaches the
// low-water mark or the catalog runs dry.
func (s *Selector) Replenish() {
	for {
		s.mu.Lock()
		if len(s.queue) >= lowWater {
			s.mu.Unlock()
			return
		}
		filters, cursor := s.filters, s.cursor
		s.mu.Unlock()

		sets, nextCursor, err := s.provider.SearchBeatmapsets(filters, cursor)
		if err != nil {
			s.log.Warnw("beatmapset search failed", "error", err)
			return
		}
		if len(sets) == 0 {
			return
		}

		s.mu.Lock()
		s.cursor = nextCursor
		for _, set := range sets {
			diffs := append([]osu.Beatmap(nil), set.Beatmaps...)
			sort.Slice(diffs, func(i, j int) bool { return diffs[i].Star > diffs[j].Star })

			for _, b := range diffs {
				if len(s.beatmapErrorsLocked(b)) > 0 {
					continue
				}
				b.Title, b.Artist = set.Title, set.Artist
				s.queue = append(s.queue, b)
				break // one difficulty per set
			}
		}
		done := len(s.queue) >= lowWater || nextCursor == ""
		s.mu.Unlock()

		if done {
			return
		}
	}
}

// IsAcceptable reports whether a beatmap passes every active filter.
func (s *Selector) IsAcceptable(b osu.Beatmap) bool {
	return len(s.BeatmapErrors(b)) == 0
}

// BeatmapErrors names each violated difficulty-level filter.
func (s *Selector) BeatmapErrors(b osu.Beatmap) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beatmapErrorsLocked(b)
}

func (s *Selector) beatmapErrorsLocked(b osu.Beatmap) []string {
	f := s.filters
	var errs []string

	if b.Mode != f.PlayMode {
		errs = append(errs, fmt.Sprintf("Play Mode %s != %s", b.Mode.Name(), f.PlayMode.Name()))
	}
	if !f.Star.contains(b.Star) {
		errs = append(errs, fmt.Sprintf("Star %g != %g-%g*", b.Star, f.Star.Min, f.Star.Max))
	}
	if !f.AR.contains(b.AR) {
		errs = append(errs, fmt.Sprintf("AR %g != %g-%g", b.AR, f.AR.Min, f.AR.Max))
	}
	if !f.BPM.contains(int(b.BPM)) {
		errs = append(errs, fmt.Sprintf("BPM %g != %d-%d", b.BPM, f.BPM.Min, f.BPM.Max))
	}
	if !f.Length.contains(b.TotalLength) {
		errs = append(errs, fmt.Sprintf("Length %d != %d-%d", b.TotalLength, f.Length.Min, f.Length.Max))
	}
	if !f.CS.contains(b.CS) {
		errs = append(errs, fmt.Sprintf("CS %g != %g-%g", b.CS, f.CS.Min, f.CS.Max))
	}
	if !s.rankAllowedLocked(b.Status) {
		names := make([]string, 0, len(f.RankStatus))
		for _, status := range f.RankStatus {
			names = append(names, status.Name())
		}
		errs = append(errs, fmt.Sprintf("Rank Status %s != [%s]", b.Status.Name(), strings.Join(names, " | ")))
	}

	return errs
}

func (s *Selector) rankAllowedLocked(status osu.RankStatus) bool {
	for _, allowed := range s.filters.RankStatus {
		if allowed == status {
			return true
		}
	}
	return false
}

// BeatmapsetErrors names violated set-level filters (genre/language).
func (s *Selector) BeatmapsetErrors(set osu.Beatmapset) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []string
	if s.filters.Genre != osu.AnyGenre && s.filters.Genre != set.Genre {
		errs = append(errs, fmt.Sprintf("Genre %s != %s", set.Genre.Name(), s.filters.Genre.Name()))
	}
	if s.filters.Language != osu.AnyLanguage && s.filters.Language != set.Language {
		errs = append(errs, fmt.Sprintf("Language %s != %s", set.Language.Name(), s.filters.Language.Name()))
	}
	return errs
}

// Configure applies a partial filter update. Enum names are validated before
// anything is committed; an actual change invalidates the queue and cursor
// and rebuilds the candidate list.
func (s *Selector) Configure(update FilterUpdate) error {
	s.mu.Lock()
	next, changed, err := update.apply(s.filters)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.filters = next
	if changed {
		s.queue = nil
		s.cursor = ""
	}
	s.mu.Unlock()

	if changed {
		s.Replenish()
	}
	return nil
}

// Filters returns a copy of the active policy.
func (s *Selector) Filters() Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.filters
	f.RankStatus = append([]osu.RankStatus(nil), f.RankStatus...)
	return f
}

// Queue renders the next two queued titles for lobby chat.
func (s *Selector) Queue() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "No Beatmaps"
	}

	var parts []string
	for _, b := range s.queue[1:min(len(s.queue), 3)] {
		url := b.URL
		if url == "" {
			url = osu.BeatmapURL(b.BeatmapsetID, b.ID)
		}
		parts = append(parts, fmt.Sprintf("[%s %s]", url, b.Title))
	}
	if len(parts) == 0 {
		return "No Beatmaps"
	}
	return strings.Join(parts, ", ")
}

// Links renders alternate download mirrors for the current selection.
func (s *Selector) Links() string {
	s.mu.Lock()
	current := s.currentLocked()
	s.mu.Unlock()

	id := current.BeatmapsetID
	if id == 0 {
		return "missing_beatmap_id"
	}
	return fmt.Sprintf(
		"[https://osu.ppy.sh/beatmapsets/%d osu]  [https://beatconnect.io/b/%d/ beatconnect]  [https://chimu.moe/d/%d chimu]",
		id, id, id,
	)
}

// Snapshot returns the JSON-able selector state.
func (s *Selector) Snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]string, 0, len(s.filters.RankStatus))
	for _, status := range s.filters.RankStatus {
		statuses = append(statuses, status.Name())
	}

	return Data{
		PlayMode:   s.filters.PlayMode.Name(),
		Star:       s.filters.Star,
		AR:         s.filters.AR,
		CS:         s.filters.CS,
		Length:     s.filters.Length,
		BPM:        s.filters.BPM,
		RankStatus: statuses,
		Genre:      s.filters.Genre.Name(),
		Language:   s.filters.Language.Name(),
		Current:    s.currentLocked(),
		Lists:      append([]osu.Beatmap(nil), s.queue...),
	}
}
