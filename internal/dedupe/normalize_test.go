package dedupe

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Foo Bar | SomeSite", "foo bar"},
		{"foo bar", "foo bar"},
		{"Rock & Roll!!", "rock roll"},
		{"Band X Announces New Album | NME", "band x announces new album"},
		{"  Tabs\tand\nnewlines   everywhere ", "tabs and newlines everywhere"},
		{"A|B|C", "a"},
		{"| leading pipe", ""},
		{"Motörhead's \"Ace Of Spades\" (2024 Remaster)", "mot rhead s ace of spades 2024 remaster"},
		{"!!!", ""},
		{"AC/DC Tour 2025", "ac dc tour 2025"},
		{"İstanbul Rocks", "istanbul rocks"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_BrandSuffixMatchesPlainTitle(t *testing.T) {
	a := Normalize("Foo Bar | SomeSite")
	b := Normalize("foo bar")
	if a != b {
		t.Errorf("expected %q == %q", a, b)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	titles := []string{
		"Metallica Announce 2026 World Tour | Loudwire",
		"Rock & Roll!!",
		"  spaced   out  ",
	}
	for _, title := range titles {
		once := Normalize(title)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", title, once, twice)
		}
	}
}
