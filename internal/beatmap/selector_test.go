package beatmap

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/astrolabio1417/legacy-osu-bot/internal/osu"
)

type fakeProvider struct {
	mu       sync.Mutex
	sets     []osu.Beatmapset
	searches int
	err      error
}

func (p *fakeProvider) SearchBeatmapsets(_ Filters, cursor string) ([]osu.Beatmapset, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches++
	if p.err != nil {
		return nil, "", p.err
	}
	if cursor == "done" {
		return nil, "", nil
	}
	return p.sets, "done", nil
}

func (p *fakeProvider) Beatmap(id int) (osu.Beatmap, error) {
	return osu.Beatmap{}, errors.New("not found")
}

func (p *fakeProvider) Beatmapset(id int) (osu.Beatmapset, error) {
	return osu.Beatmapset{}, errors.New("not found")
}

func passing(id, setID int, star float64) osu.Beatmap {
	return osu.Beatmap{
		ID: id, BeatmapsetID: setID, Mode: osu.Osu,
		Star: star, AR: 9, CS: 4, BPM: 180, TotalLength: 120,
		Status: osu.Ranked,
	}
}

func strictFilters() Filters {
	f := DefaultFilters()
	f.Star = Range{5, 6}
	f.Length = IntRange{0, 600}
	return f
}

func TestSelector_IsAcceptable(t *testing.T) {
	cases := []struct {
		name string
		b    osu.Beatmap
		want bool
	}{
		{"inside every range", passing(1, 10, 5.5), true},
		{"star too high", passing(1, 10, 7.9), false},
		{"star at inclusive max", passing(1, 10, 6.0), true},
		{"star at inclusive min", passing(1, 10, 5.0), true},
		{"wrong play mode", func() osu.Beatmap { b := passing(1, 10, 5.5); b.Mode = osu.Mania; return b }(), false},
		{"status outside allow list", func() osu.Beatmap { b := passing(1, 10, 5.5); b.Status = osu.Graveyard; return b }(), false},
		{"bpm above range", func() osu.Beatmap { b := passing(1, 10, 5.5); b.BPM = 250; return b }(), false},
		{"length above range", func() osu.Beatmap { b := passing(1, 10, 5.5); b.TotalLength = 700; return b }(), false},
	}

	f := strictFilters()
	f.RankStatus = []osu.RankStatus{osu.Ranked, osu.Loved}
	s := NewSelector(&fakeProvider{}, f, zap.NewNop().Sugar())

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.IsAcceptable(tc.b); got != tc.want {
				t.Fatalf("IsAcceptable: got %v, want %v (errors: %v)", got, tc.want, s.BeatmapErrors(tc.b))
			}
		})
	}
}

func TestSelector_StarViolationMessage(t *testing.T) {
	s := NewSelector(&fakeProvider{}, strictFilters(), zap.NewNop().Sugar())
	errs := s.BeatmapErrors(passing(1, 10, 7.9))
	if len(errs) != 1 || !strings.Contains(errs[0], "Star") {
		t.Fatalf("want a single Star violation, got %v", errs)
	}
}

func TestSelector_ReplenishOnePerSetHardestFirst(t *testing.T) {
	provider := &fakeProvider{sets: []osu.Beatmapset{
		{
			ID: 10, Title: "alpha",
			Beatmaps: []osu.Beatmap{passing(1, 10, 5.2), passing(2, 10, 5.9), passing(3, 10, 7.5)},
		},
		{
			ID: 20, Title: "beta",
			Beatmaps: []osu.Beatmap{passing(4, 20, 9.1)}, // nothing passes
		},
		{
			ID: 30, Title: "gamma",
			Beatmaps: []osu.Beatmap{passing(5, 30, 5.1)},
		},
	}}

	s := NewSelector(provider, strictFilters(), zap.NewNop().Sugar())
	s.Replenish()

	snap := s.Snapshot()
	if len(snap.Lists) != 2 {
		t.Fatalf("want 2 candidates, got %+v", snap.Lists)
	}
	// Hardest passing diff of set 10 is id 2 (5.9), not 3 (7.5, filtered out).
	if snap.Lists[0].ID != 2 || snap.Lists[1].ID != 5 {
		t.Fatalf("unexpected candidate ids: %d, %d", snap.Lists[0].ID, snap.Lists[1].ID)
	}
	if snap.Lists[0].Title != "alpha" {
		t.Fatalf("set title should be carried onto the difficulty, got %q", snap.Lists[0].Title)
	}
}

func TestSelector_RotatePopsAndRefills(t *testing.T) {
	provider := &fakeProvider{sets: []osu.Beatmapset{
		{ID: 10, Title: "a", Beatmaps: []osu.Beatmap{passing(1, 10, 5.5)}},
		{ID: 20, Title: "b", Beatmaps: []osu.Beatmap{passing(2, 20, 5.5)}},
		{ID: 30, Title: "c", Beatmaps: []osu.Beatmap{passing(3, 30, 5.5)}},
	}}
	s := NewSelector(provider, strictFilters(), zap.NewNop().Sugar())
	s.Replenish()

	if s.Current().ID != 1 {
		t.Fatalf("current: got %d", s.Current().ID)
	}
	next := s.Rotate()
	if next.ID != 2 {
		t.Fatalf("after rotate: got %d", next.ID)
	}

	// Background refill keeps the provider in the loop.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		provider.mu.Lock()
		n := provider.searches
		provider.mu.Unlock()
		if n >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("rotate never triggered a background replenish")
}

func TestSelector_ConfigureInvalidEnumLeavesFiltersUntouched(t *testing.T) {
	s := NewSelector(&fakeProvider{}, strictFilters(), zap.NewNop().Sugar())
	bad := "NotAMode"
	newStar := Range{1, 2}

	err := s.Configure(FilterUpdate{PlayMode: &bad, Star: &newStar})
	if err == nil {
		t.Fatalf("expected construction fault for unknown play mode")
	}
	if got := s.Filters().Star; got != (Range{5, 6}) {
		t.Fatalf("star range changed despite failed update: %+v", got)
	}
}

func TestSelector_ConfigureChangeInvalidatesQueue(t *testing.T) {
	provider := &fakeProvider{sets: []osu.Beatmapset{
		{ID: 10, Title: "a", Beatmaps: []osu.Beatmap{passing(1, 10, 5.5)}},
	}}
	s := NewSelector(provider, strictFilters(), zap.NewNop().Sugar())
	s.Replenish()
	if len(s.Snapshot().Lists) == 0 {
		t.Fatalf("expected a seeded queue")
	}

	newStar := Range{1, 2}
	if err := s.Configure(FilterUpdate{Star: &newStar}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	// 5.5* candidate no longer passes, so the rebuilt queue is empty.
	if got := s.Snapshot().Lists; len(got) != 0 {
		t.Fatalf("queue should have been rebuilt under the new filters, got %+v", got)
	}
}

func TestSelector_QueueAndLinksStrings(t *testing.T) {
	provider := &fakeProvider{sets: []osu.Beatmapset{
		{ID: 10, Title: "a", Beatmaps: []osu.Beatmap{passing(1, 10, 5.5)}},
		{ID: 20, Title: "b", Beatmaps: []osu.Beatmap{passing(2, 20, 5.5)}},
		{ID: 30, Title: "c", Beatmaps: []osu.Beatmap{passing(3, 30, 5.5)}},
	}}
	s := NewSelector(provider, strictFilters(), zap.NewNop().Sugar())
	s.Replenish()

	queue := s.Queue()
	if !strings.Contains(queue, "b") || !strings.Contains(queue, "c") || strings.Contains(queue, "[https://osu.ppy.sh/beatmapsets/10") {
		t.Fatalf("queue should show the next entries, not the current one: %q", queue)
	}

	links := s.Links()
	for _, mirror := range []string{"osu.ppy.sh/beatmapsets/10", "beatconnect.io/b/10/", "chimu.moe/d/10"} {
		if !strings.Contains(links, mirror) {
			t.Fatalf("links missing %q: %q", mirror, links)
		}
	}
}
