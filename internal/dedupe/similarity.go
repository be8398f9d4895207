package dedupe

// popularMinLen is the length of the second sequence from which elements
// that make up more than 1% of it are treated as noise when seeding matches.
const popularMinLen = 200

// IsSimilar reports whether two normalized titles describe the same story.
// An empty title is never similar to anything, including another empty
// title, so records without a headline are never merged.
func IsSimilar(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	return Ratio(a, b) >= threshold
}

// Ratio returns 2*M/T where M is the number of characters covered by the
// longest-common-matching-blocks alignment of a and b and T is the total
// number of characters in both. Identical strings score 1.0 and strings
// with no character in common score 0.0. Two empty strings score 1.0.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	m := newMatcher(ra, rb)
	return 2.0 * float64(m.matches()) / float64(total)
}

// matcher finds matching blocks between a and b with the Ratcliff/Obershelp
// approach: take the longest common block, then recurse on both sides of it.
type matcher struct {
	a, b []rune
	// b2j maps every non-popular element of b to its ascending positions.
	b2j map[rune][]int
}

type block struct {
	i, j, size int
}

func newMatcher(a, b []rune) *matcher {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	if n := len(b); n >= popularMinLen {
		limit := n/100 + 1
		for r, idx := range b2j {
			if len(idx) > limit {
				delete(b2j, r)
			}
		}
	}

	return &matcher{a: a, b: b, b2j: b2j}
}

// longest returns the longest block with a[alo:ahi] and b[blo:bhi].
// Ties go to the block starting earliest in a, then earliest in b.
func (m *matcher) longest(alo, ahi, blo, bhi int) block {
	best := block{i: alo, j: blo}

	// j2len[j] is the length of the match ending at a[i-1], b[j].
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > best.size {
				best = block{i: i - k + 1, j: j - k + 1, size: k}
			}
		}
		j2len = next
	}

	// Popular elements never seed a match but may still extend one.
	for best.i > alo && best.j > blo && m.a[best.i-1] == m.b[best.j-1] {
		best.i--
		best.j--
		best.size++
	}
	for best.i+best.size < ahi && best.j+best.size < bhi &&
		m.a[best.i+best.size] == m.b[best.j+best.size] {
		best.size++
	}

	return best
}

// matches returns the number of elements covered by all matching blocks.
func (m *matcher) matches() int {
	total := 0
	queue := [][4]int{{0, len(m.a), 0, len(m.b)}}
	for len(queue) > 0 {
		q := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		alo, ahi, blo, bhi := q[0], q[1], q[2], q[3]

		x := m.longest(alo, ahi, blo, bhi)
		if x.size == 0 {
			continue
		}
		total += x.size
		if alo < x.i && blo < x.j {
			queue = append(queue, [4]int{alo, x.i, blo, x.j})
		}
		if x.i+x.size < ahi && x.j+x.size < bhi {
			queue = append(queue, [4]int{x.i + x.size, ahi, x.j + x.size, bhi})
		}
	}
	return total
}
