package dedupe

// Exact keeps the first record for each distinct normalized title and drops
// every later record whose normalized title is identical. Records with an
// empty or missing title all normalize to "" and therefore collapse into the
// first of them.
func Exact[T any](items []T, title func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))

	for _, item := range items {
		key := Normalize(title(item))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}

	return out
}

// Fuzzy drops every record whose normalized title is similar (ratio >=
// threshold) to a record already kept. Records are visited in input order
// and compared against kept records in keep order; the first similar kept
// record decides. Similarity is not transitive, so comparing against dropped
// records or against the whole input would give different results.
//
// The output keeps the relative input order and is a new slice; the records
// themselves are copied as-is. Running Fuzzy on its own output with the same
// threshold returns it unchanged.
func Fuzzy[T any](items []T, title func(T) string, threshold float64) []T {
	out := make([]T, 0, len(items))
	// keptNorm[k] is the normalized title of out[k].
	keptNorm := make([]string, 0, len(items))

	for _, item := range items {
		norm := Normalize(title(item))

		if similarToKept(norm, keptNorm, threshold) {
			continue
		}

		out = append(out, item)
		keptNorm = append(keptNorm, norm)
	}

	return out
}

func similarToKept(norm string, kept []string, threshold float64) bool {
	if norm == "" {
		return false
	}
	for _, k := range kept {
		if IsSimilar(norm, k, threshold) {
			return true
		}
	}
	return false
}

// Stats summarizes one dedup pass for logging and metrics.
type Stats struct {
	In      int
	Kept    int
	Dropped int
}

// FuzzyWithStats is Fuzzy plus the counts of a pass.
func FuzzyWithStats[T any](items []T, title func(T) string, threshold float64) ([]T, Stats) {
	out := Fuzzy(items, title, threshold)
	return out, Stats{In: len(items), Kept: len(out), Dropped: len(items) - len(out)}
}
