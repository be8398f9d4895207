package news

import (
	"regexp"
	"sort"
	"strings"
)

type matcher struct {
	phrase string         // substring match
	word   *regexp.Regexp // whole-word match for short keywords
}

func (m matcher) match(text string) bool {
	if m.word != nil {
		return m.word.MatchString(text)
	}
	return strings.Contains(text, m.phrase)
}

// Tagger assigns genres from keyword dictionaries. Keywords of three
// letters or fewer must match a whole word so "emo" does not hit "demo".
type Tagger struct {
	genres map[string][]matcher
	names  []string
}

func NewTagger(dict map[string][]string) *Tagger {
	t := &Tagger{genres: make(map[string][]matcher, len(dict))}
	named := make(map[string]bool, len(dict))
	for genre, keywords := range dict {
		genre = strings.ToLower(strings.TrimSpace(genre))
		if genre == "" {
			continue
		}
		// Keys differing only in case share one genre.
		if !named[genre] {
			named[genre] = true
			t.names = append(t.names, genre)
		}
		for _, k := range keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k == "" {
				continue
			}
			m := matcher{phrase: k}
			if !strings.Contains(k, " ") && len(k) <= 3 {
				m.word = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
			}
			t.genres[genre] = append(t.genres[genre], m)
		}
	}
	sort.Strings(t.names)
	return t
}

// Tag returns the sorted genres whose keywords occur in the article text.
func (t *Tagger) Tag(title, description string) []string {
	if t == nil {
		return nil
	}
	text := strings.ToLower(title + " " + description)

	var out []string
	for _, g := range t.names {
		for _, m := range t.genres[g] {
			if m.match(text) {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// Genres lists the configured genre names.
func (t *Tagger) Genres() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

func hasGenre(genres []string, want string) bool {
	for _, g := range genres {
		if g == want {
			return true
		}
	}
	return false
}

func addGenre(genres []string, g string) []string {
	g = strings.ToLower(strings.TrimSpace(g))
	if g == "" || hasGenre(genres, g) {
		return genres
	}
	genres = append(genres, g)
	sort.Strings(genres)
	return genres
}
