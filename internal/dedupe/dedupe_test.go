package dedupe

import (
	"reflect"
	"testing"
)

type record struct {
	Title  string
	URL    string
	Source string
	Genres []string
}

func titleOf(r record) string { return r.Title }

func titles(rs []record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Title
	}
	return out
}

func TestFuzzy_BrandSuffixScenario(t *testing.T) {
	in := []record{
		{Title: "Band X Announces New Album", URL: "https://a.example/1", Source: "A"},
		{Title: "Band X Announces New Album | NME", URL: "https://nme.example/2", Source: "NME"},
		{Title: "Sami Valimaki Wins PGA Event", URL: "https://c.example/3", Source: "C"},
	}

	got := Fuzzy(in, titleOf, 0.85)

	want := []record{in[0], in[2]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", titles(got), titles(want))
	}
}

func TestFuzzy_EmptyInput(t *testing.T) {
	for _, in := range [][]record{nil, {}} {
		got := Fuzzy(in, titleOf, 0.85)
		if got == nil {
			t.Error("expected empty slice, got nil")
		}
		if len(got) != 0 {
			t.Errorf("expected 0 records, got %d", len(got))
		}
	}
}

func TestExact_EmptyInput(t *testing.T) {
	got := Exact[record](nil, titleOf)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFuzzy_PreservesPayloadAndDoesNotMutateInput(t *testing.T) {
	in := []record{
		{Title: "Iron Maiden Add Second London Date", URL: "u1", Source: "Blabbermouth", Genres: []string{"metal"}},
		{Title: "Iron Maiden add second London date!", URL: "u2", Source: "Loudwire", Genres: []string{"rock"}},
		{Title: "Slipknot Drummer Steps Down", URL: "u3", Source: "Kerrang", Genres: []string{"metal", "nu"}},
	}
	snapshot := make([]record, len(in))
	copy(snapshot, in)

	got := Fuzzy(in, titleOf, 0.85)

	if !reflect.DeepEqual(in, snapshot) {
		t.Error("input slice was modified")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(got), titles(got))
	}
	if !reflect.DeepEqual(got[0], in[0]) || !reflect.DeepEqual(got[1], in[2]) {
		t.Errorf("kept records differ from originals: %#v", got)
	}

	// Output must not alias the input backing array.
	got[0].Title = "changed"
	if in[0].Title == "changed" {
		t.Error("output aliases input slice")
	}
}

func TestFuzzy_ComparesOnlyAgainstKeptRecords(t *testing.T) {
	// Ratio(a, b) == Ratio(b, c) == 0.5 and Ratio(a, c) == 0. With threshold
	// 0.5, b is dropped as similar to a; c is only compared with a and kept.
	in := []record{{Title: "aaaa"}, {Title: "aabb"}, {Title: "bbbb"}}

	got := Fuzzy(in, titleOf, 0.5)

	want := []string{"aaaa", "bbbb"}
	if !reflect.DeepEqual(titles(got), want) {
		t.Errorf("got %v, want %v", titles(got), want)
	}
}

func TestFuzzy_FirstOccurrenceWins(t *testing.T) {
	in := []record{
		{Title: "Ozzy Osbourne Final Show Sells Out", Source: "first"},
		{Title: "Ozzy Osbourne final show sells out!", Source: "second"},
		{Title: "OZZY OSBOURNE FINAL SHOW SELLS OUT | Rolling Stone", Source: "third"},
	}

	got := Fuzzy(in, titleOf, 0.86)

	if len(got) != 1 || got[0].Source != "first" {
		t.Errorf("expected only the first record, got %#v", got)
	}
}

func TestFuzzy_EmptyTitlesNeverMerged(t *testing.T) {
	in := []record{{Title: ""}, {Title: "   "}, {Title: "!!!"}, {Title: "Real Headline"}}

	got := Fuzzy(in, titleOf, 0.0)

	if len(got) != len(in) {
		t.Errorf("expected all %d records kept, got %d", len(in), len(got))
	}
}

func TestFuzzy_ThresholdBounds(t *testing.T) {
	in := []record{
		{Title: "Green Day Headline Festival"},
		{Title: "Green Day Headline Festival | Spin"},
		{Title: "Completely Unrelated Story"},
	}

	if got := Fuzzy(in, titleOf, 1.01); len(got) != 3 {
		t.Errorf("threshold above 1 should keep everything, got %v", titles(got))
	}
	if got := Fuzzy(in, titleOf, 1.0); len(got) != 2 {
		t.Errorf("threshold 1 should only drop identical titles, got %v", titles(got))
	}
	if got := Fuzzy(in, titleOf, 0.0); len(got) != 1 {
		t.Errorf("threshold 0 should merge every non-empty title, got %v", titles(got))
	}
}

func TestFuzzy_Idempotent(t *testing.T) {
	inputs := [][]record{
		{{Title: "aaaa"}, {Title: "aabb"}, {Title: "bbbb"}, {Title: "aaab"}},
		{
			{Title: "Foo Fighters Announce Tour"},
			{Title: "Foo Fighters Announce Stadium Tour"},
			{Title: "Foo Fighters Cancel Tour"},
			{Title: ""},
			{Title: ""},
			{Title: "Pearl Jam Release Live Album | Billboard"},
			{Title: "Pearl Jam release live album"},
		},
	}

	for _, threshold := range []float64{0.5, 0.8, 0.85, 0.86} {
		for _, in := range inputs {
			once := Fuzzy(in, titleOf, threshold)
			twice := Fuzzy(once, titleOf, threshold)
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("threshold %v: not idempotent: %v then %v", threshold, titles(once), titles(twice))
			}
			if len(once) > len(in) {
				t.Errorf("output longer than input")
			}
		}
	}
}

func TestFuzzy_PreservesRelativeOrder(t *testing.T) {
	in := []record{
		{Title: "Alpha Story"},
		{Title: "Beta Story Today"},
		{Title: "Alpha Story | Site"},
		{Title: "Gamma Report"},
	}

	got := Fuzzy(in, titleOf, 0.85)

	pos := map[string]int{}
	for i, r := range in {
		pos[r.Title] = i
	}
	for i := 1; i < len(got); i++ {
		if pos[got[i-1].Title] >= pos[got[i].Title] {
			t.Fatalf("order not preserved: %v", titles(got))
		}
	}
}

func TestExact(t *testing.T) {
	in := []record{
		{Title: "Korn Announce Tour", Source: "a"},
		{Title: "KORN announce tour!", Source: "b"},
		{Title: "Korn Announce Tour | Revolver", Source: "c"},
		{Title: "Korn Announce Tours", Source: "d"},
	}

	got := Exact(in, titleOf)

	want := []record{in[0], in[3]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", titles(got), titles(want))
	}
}

func TestExact_EmptyTitlesCollapse(t *testing.T) {
	in := []record{{Title: "", Source: "a"}, {Title: "Headline"}, {Title: "???", Source: "c"}}

	got := Exact(in, titleOf)

	if len(got) != 2 || got[0].Source != "a" || got[1].Title != "Headline" {
		t.Errorf("expected first empty-titled record plus headline, got %#v", got)
	}
}

func TestExact_NoTwoEqualNormalizedTitles(t *testing.T) {
	in := []record{
		{Title: "One"}, {Title: "one"}, {Title: "Two"}, {Title: "ONE | x"}, {Title: "two!!"}, {Title: "Three"},
	}

	got := Exact(in, titleOf)

	seen := map[string]bool{}
	for _, r := range got {
		key := Normalize(r.Title)
		if seen[key] {
			t.Errorf("duplicate normalized title %q in output", key)
		}
		seen[key] = true
	}
	if want := []string{"One", "Two", "Three"}; !reflect.DeepEqual(titles(got), want) {
		t.Errorf("got %v, want %v", titles(got), want)
	}
}

func TestFuzzyWithStats(t *testing.T) {
	in := []record{{Title: "Same"}, {Title: "same"}, {Title: "Other thing"}}

	out, stats := FuzzyWithStats(in, titleOf, 0.9)

	if stats.In != 3 || stats.Kept != len(out) || stats.Dropped != 1 {
		t.Errorf("unexpected stats %+v for output %v", stats, titles(out))
	}
}
