package news

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/musichub/internal/cache"
	"github.com/deusflow/musichub/internal/rss"
)

type fakeFetcher struct {
	items map[string][]rss.Item
	errs  map[string]error
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, src rss.Source) ([]rss.Item, error) {
	f.calls.Add(1)
	if err := f.errs[src.Name]; err != nil {
		return nil, err
	}
	return f.items[src.Name], nil
}

var (
	t0      = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sources = []rss.Source{{Name: "Blabbermouth.net", Genre: "metal"}, {Name: "Loudwire"}}
	genres  = map[string][]string{
		"metal": {"metal", "thrash"},
		"punk":  {"punk"},
		"emo":   {"emo"},
	}
)

func item(title, source string, age time.Duration) rss.Item {
	return rss.Item{Title: title, Link: "https://x.example/" + title, Source: source, PublishedAt: t0.Add(-age)}
}

func articleTitles(as []Article) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Title
	}
	return out
}

func newFixture() *fakeFetcher {
	return &fakeFetcher{items: map[string][]rss.Item{
		"Blabbermouth.net": {
			item("Metallica Announce Tour", "Blabbermouth.net", 1*time.Hour),
			item("Slayer Reunion Confirmed", "Blabbermouth.net", 3*time.Hour),
		},
		"Loudwire": {
			item("Metallica Announce Tour | Loudwire", "Loudwire", 2*time.Hour),
			item("Green Day Punk Classic Turns 30", "Loudwire", 30*time.Minute),
		},
	}}
}

func TestAggregator_MergesSortsAndDedupes(t *testing.T) {
	agg := NewAggregator(newFixture(), sources, NewTagger(genres), Options{Threshold: 0.85})

	got, err := agg.Fetch(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []string{"Green Day Punk Classic Turns 30", "Metallica Announce Tour", "Slayer Reunion Confirmed"}
	if !reflect.DeepEqual(articleTitles(got), want) {
		t.Errorf("got %v, want %v", articleTitles(got), want)
	}
	if got[1].Source != "Blabbermouth.net" {
		t.Errorf("newest duplicate should win, kept source %q", got[1].Source)
	}
	if !reflect.DeepEqual(got[0].Genres, []string{"punk"}) {
		t.Errorf("genres = %v", got[0].Genres)
	}
	if !reflect.DeepEqual(got[2].Genres, []string{"metal"}) {
		t.Errorf("source default genre not applied: %v", got[2].Genres)
	}
}

func TestAggregator_QueryAndGenreFilter(t *testing.T) {
	agg := NewAggregator(newFixture(), sources, NewTagger(genres), Options{Threshold: 0.85})

	got, err := agg.Fetch(context.Background(), Query{Text: "  SLAYER "})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Slayer Reunion Confirmed"}; !reflect.DeepEqual(articleTitles(got), want) {
		t.Errorf("text filter: got %v", articleTitles(got))
	}

	got, err = agg.Fetch(context.Background(), Query{Genre: "Punk"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Green Day Punk Classic Turns 30"}; !reflect.DeepEqual(articleTitles(got), want) {
		t.Errorf("genre filter: got %v", articleTitles(got))
	}
}

func TestAggregator_PageSizeCapsBeforeDedupe(t *testing.T) {
	agg := NewAggregator(newFixture(), sources, nil, Options{Threshold: 0.85})

	got, err := agg.Fetch(context.Background(), Query{PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 articles, got %v", articleTitles(got))
	}
}

func TestAggregator_OversizedPageSize(t *testing.T) {
	agg := NewAggregator(newFixture(), sources, nil, Options{Threshold: 0.85})

	got, err := agg.Fetch(context.Background(), Query{PageSize: 1 << 40})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 articles, got %v", articleTitles(got))
	}
}

func TestAggregator_PartialFailure(t *testing.T) {
	f := newFixture()
	f.errs = map[string]error{"Loudwire": errors.New("timeout")}
	agg := NewAggregator(f, sources, nil, Options{Threshold: 0.85})

	got, err := agg.Fetch(context.Background(), Query{})
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected Blabbermouth items only, got %v", articleTitles(got))
	}
}

func TestAggregator_AllFeedsFail(t *testing.T) {
	f := &fakeFetcher{errs: map[string]error{
		"Blabbermouth.net": errors.New("boom"),
		"Loudwire":         errors.New("boom"),
	}}
	agg := NewAggregator(f, sources, nil, Options{Threshold: 0.85})

	if _, err := agg.Fetch(context.Background(), Query{}); !errors.Is(err, ErrAllFeedsFailed) {
		t.Fatalf("expected ErrAllFeedsFailed, got %v", err)
	}
}

func TestAggregator_UsesCache(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Close()

	f := newFixture()
	agg := NewAggregator(f, sources, nil, Options{Threshold: 0.85, Cache: c, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := agg.Fetch(context.Background(), Query{Text: "metallica"}); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.calls.Load(); n != int32(len(sources)) {
		t.Errorf("expected one fetch per source, got %d calls", n)
	}
}

func TestTagger(t *testing.T) {
	tg := NewTagger(map[string][]string{
		"emo":       {"emo"},
		"metal":     {"metal", "death metal"},
		"hard rock": {"hard rock"},
	})

	cases := []struct {
		title, desc string
		want        []string
	}{
		{"New Demo Leaks", "", nil},
		{"Emo Night Returns", "", []string{"emo"}},
		{"Death Metal Legends Return", "", []string{"metal"}},
		{"Classic Hard Rock Reissue", "with metal covers", []string{"hard rock", "metal"}},
	}
	for _, tc := range cases {
		if got := tg.Tag(tc.title, tc.desc); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Tag(%q) = %v, want %v", tc.title, got, tc.want)
		}
	}

	if want := []string{"emo", "hard rock", "metal"}; !reflect.DeepEqual(tg.Genres(), want) {
		t.Errorf("Genres() = %v", tg.Genres())
	}
}

func TestTagger_CaseInsensitiveGenreKeys(t *testing.T) {
	tg := NewTagger(map[string][]string{
		"Metal": {"thrash"},
		"metal": {"doom"},
	})

	if want := []string{"metal"}; !reflect.DeepEqual(tg.Genres(), want) {
		t.Errorf("Genres() = %v, want %v", tg.Genres(), want)
	}
	if got, want := tg.Tag("Thrash and Doom Double Bill", ""), []string{"metal"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Tag = %v, want %v", got, want)
	}
}

func TestHumanTime(t *testing.T) {
	cases := []struct {
		a    Article
		want string
	}{
		{Article{PublishedAt: time.Date(2024, 3, 9, 15, 4, 0, 0, time.UTC)}, "Mar 09, 2024 03:04 PM"},
		{Article{Published: "2024-03-09T08:30:00Z"}, "Mar 09, 2024 08:30 AM"},
		{Article{Published: "yesterday-ish"}, "yesterday-ish"},
		{Article{}, ""},
	}
	for _, tc := range cases {
		if got := HumanTime(tc.a); got != tc.want {
			t.Errorf("HumanTime(%+v) = %q, want %q", tc.a, got, tc.want)
		}
	}
}
