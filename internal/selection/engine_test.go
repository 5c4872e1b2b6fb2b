package selection

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaiahnixon/newspaper/internal/story"
)

var selectionNow = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

func fullRecord(title, link, group string) story.Record {
	published := selectionNow.Add(-2 * time.Hour)
	return story.Record{
		Topic:       "news",
		Title:       title,
		Link:        link,
		SourceLabel: group,
		SourceGroup: group,
		Summary:     strings.Repeat("Reporters followed the developments closely. ", 6),
		Published:   &published,
	}
}

func titles(records []story.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Title)
	}
	return out
}

func sameTitles(a, b []story.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Title != b[i].Title {
			return false
		}
	}
	return true
}

func mixedPool() []story.Record {
	return []story.Record{
		fullRecord("Harbor expansion approved by council", "https://wire.example.com/harbor", "Wire"),
		fullRecord("Drought forces water restrictions", "https://wire.example.com/drought", "Wire"),
		fullRecord("Stock markets close at record high", "https://wire.example.com/markets", "Wire"),
		fullRecord("Vaccine trial shows strong results", "https://wire.example.com/vaccine", "Wire"),
		fullRecord("Glacier retreat measured by satellites", "https://wire.example.com/glacier", "Wire"),
		fullRecord("Teachers vote to accept pay offer", "https://wire.example.com/teachers", "Wire"),
		fullRecord("Rover finds signs of ancient lake", "https://space.example.org/rover", "Space Desk"),
		fullRecord("Central bank holds interest rates", "https://money.example.net/rates", "Money Daily"),
		fullRecord("Wildfire season starts early in south", "https://weather.example.io/fires", "Weather Now"),
		fullRecord("Museum returns looted bronzes", "https://culture.example.co/bronzes", "Culture Post"),
	}
}

func TestSelectSourceCapStillFillsLimit(t *testing.T) {
	t.Parallel()

	engine := NewEngine(zerolog.Nop())
	got := engine.Select(context.Background(), mixedPool(), Options{Limit: 5, SourceCap: 2})

	if len(got) != 5 {
		t.Fatalf("expected 5 records, got %d: %v", len(got), titles(got))
	}
	wire := 0
	for _, rec := range got {
		if rec.Group() == "Wire" {
			wire++
		}
	}
	if wire > 2 {
		t.Fatalf("expected at most 2 records from Wire, got %d: %v", wire, titles(got))
	}
}

func TestSelectGarbageRankerMatchesNoRanker(t *testing.T) {
	t.Parallel()

	engine := NewEngine(zerolog.Nop())
	garbage := RankerFunc(func(context.Context, RankRequest) (string, error) {
		return "not a valid response", nil
	})

	plain := engine.Select(context.Background(), mixedPool(), Options{Limit: 4})
	ranked := engine.Select(context.Background(), mixedPool(), Options{Limit: 4, Ranker: garbage})

	if len(ranked) != 4 {
		t.Fatalf("expected 4 records, got %d", len(ranked))
	}
	if !sameTitles(plain, ranked) {
		t.Fatalf("garbage ranker changed the result:\nplain:  %v\nranked: %v", titles(plain), titles(ranked))
	}
}

func TestSelectRankerFailureFallsBackToQualityOrder(t *testing.T) {
	t.Parallel()

	engine := NewEngine(zerolog.Nop())
	failing := RankerFunc(func(context.Context, RankRequest) (string, error) {
		return "", errors.New("upstream timeout")
	})
	empty := RankerFunc(func(context.Context, RankRequest) (string, error) {
		return "   ", nil
	})

	plain := engine.Select(context.Background(), mixedPool(), Options{Limit: 3})
	for _, ranker := range []Ranker{failing, empty} {
		got := engine.Select(context.Background(), mixedPool(), Options{Limit: 3, Ranker: ranker})
		if !sameTitles(plain, got) {
			t.Fatalf("expected quality order fallback:\nplain: %v\ngot:   %v", titles(plain), titles(got))
		}
	}
}

func TestSelectRankerReordersCandidates(t *testing.T) {
	t.Parallel()

	pool := []story.Record{
		fullRecord("Delta airline adds routes", "https://d.example.com/x", "D"),
		fullRecord("Alpha team wins cup", "https://a.example.com/x", "A"),
		fullRecord("Charlie river floods town", "https://c.example.com/x", "C"),
		fullRecord("Bravo firm opens factory", "https://b.example.com/x", "B"),
	}

	var seen RankRequest
	ranker := RankerFunc(func(_ context.Context, req RankRequest) (string, error) {
		seen = req
		return "3, 1", nil
	})

	got := NewEngine(zerolog.Nop()).Select(context.Background(), pool, Options{Topic: "news", Limit: 2, Ranker: ranker})
	want := []string{"Charlie river floods town", "Alpha team wins cup"}
	if len(got) != 2 || got[0].Title != want[0] || got[1].Title != want[1] {
		t.Fatalf("unexpected selection: %v", titles(got))
	}
	if seen.Count != 2 || len(seen.Candidates) != 4 || seen.Candidates[0].Index != 1 {
		t.Fatalf("unexpected rank request: %+v", seen)
	}
	if seen.Candidates[0].Domain != "a.example.com" {
		t.Fatalf("expected candidates in quality order, got %+v", seen.Candidates[0])
	}
}

func TestSelectShortPoolSkipsRanker(t *testing.T) {
	t.Parallel()

	called := false
	ranker := RankerFunc(func(context.Context, RankRequest) (string, error) {
		called = true
		return "1", nil
	})
	pool := mixedPool()[6:]

	got := NewEngine(zerolog.Nop()).Select(context.Background(), pool, Options{Limit: 5, Ranker: ranker})
	if called {
		t.Fatalf("ranker must not be consulted when the pool fits the limit")
	}
	if len(got) != len(pool) {
		t.Fatalf("expected the whole pool, got %d", len(got))
	}
}

func TestSelectRejectsNearDuplicates(t *testing.T) {
	t.Parallel()

	pool := []story.Record{
		fullRecord("Parliament passes new climate law", "https://politics.example.com/a", "P"),
		fullRecord("Parliament passes new climate law.", "https://politics.example.com/b", "P"),
		fullRecord("Ferry service resumes after storm", "https://coast.example.com/ferry", "C"),
	}

	got := NewEngine(zerolog.Nop()).Select(context.Background(), pool, Options{Limit: 3})
	if len(got) != 2 {
		t.Fatalf("expected near duplicate to be dropped, got %v", titles(got))
	}
}

func TestSelectDomainCapPrefersOtherHosts(t *testing.T) {
	t.Parallel()

	pool := []story.Record{
		fullRecord("Airport strike grounds flights", "https://big.example.com/1", "Big"),
		fullRecord("Bridge repairs finish early", "https://big.example.com/2", "Big"),
		fullRecord("City budget surplus announced", "https://big.example.com/3", "Big"),
		fullRecord("Dock workers sign contract", "https://big.example.com/4", "Big"),
	}
	lesser := fullRecord("Zoo welcomes panda cubs", "https://small.example.org/zoo", "Small")
	lesser.Summary = strings.Repeat("Short note. ", 8)
	pool = append(pool, lesser)

	got := NewEngine(zerolog.Nop()).Select(context.Background(), pool, Options{Limit: 3})
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[2].Title != lesser.Title {
		t.Fatalf("expected the other host to fill the third slot, got %v", titles(got))
	}

	relaxed := NewEngine(zerolog.Nop()).Select(context.Background(), pool[:4], Options{Limit: 3})
	if len(relaxed) != 3 {
		t.Fatalf("expected the cap to relax when no other host remains, got %v", titles(relaxed))
	}
}

func TestSelectDefersLowInformationRecords(t *testing.T) {
	t.Parallel()

	thin := fullRecord("Aardvark spotted downtown", "https://thin.example.com/a", "Thin")
	thin.Summary = "Brief."
	pool := []story.Record{
		thin,
		fullRecord("Orchestra tours abroad", "https://music.example.com/a", "Music"),
		fullRecord("Farmers report bumper harvest", "https://farm.example.com/a", "Farm"),
	}

	got := NewEngine(zerolog.Nop()).Select(context.Background(), pool, Options{Limit: 3})
	if len(got) != 3 {
		t.Fatalf("expected low information record to fill the last slot, got %v", titles(got))
	}
	if got[2].Title != thin.Title {
		t.Fatalf("expected low information record last, got %v", titles(got))
	}

	limited := NewEngine(zerolog.Nop()).Select(context.Background(), pool, Options{Limit: 2})
	for _, rec := range limited {
		if rec.Title == thin.Title {
			t.Fatalf("low information record should not displace full records: %v", titles(limited))
		}
	}
}
