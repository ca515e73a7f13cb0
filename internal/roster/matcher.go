package roster

import (
	"sort"

	"github.com/facemark/facemark/internal/embedding"
)

// Matcher decides which roster members are visible in a session
// photo's set of detected face embeddings.
type Matcher struct {
	tolerance   float64
	indexCutoff int // roster size at which the HNSW prefilter kicks in
}

// NewMatcher creates a matcher with the given distance tolerance.
// indexCutoff <= 0 disables the HNSW prefilter entirely.
func NewMatcher(tolerance float64, indexCutoff int) *Matcher {
	return &Matcher{tolerance: tolerance, indexCutoff: indexCutoff}
}

// Tolerance returns the matcher's configured distance tolerance.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Match returns the IDs of students visible in the photo, sorted for
// deterministic output. A student is present iff at least one of
// their enrolled embeddings is within tolerance of at least one
// detected embedding. Students without enrolled embeddings are
// skipped. Dimension-mismatched pairs are skipped as well; a single
// malformed stored embedding must not deny attendance to the rest of
// the class. The same detected face may satisfy multiple students;
// each student is judged independently.
func (m *Matcher) Match(detected [][]float64, students []Student) []string {
	if len(detected) == 0 || len(students) == 0 {
		return nil
	}

	candidates := students
	if m.indexCutoff > 0 && len(students) >= m.indexCutoff {
		candidates = m.prefilter(detected, students)
	}

	var present []string
	for i := range candidates {
		if m.studentSeen(detected, &candidates[i]) {
			present = append(present, candidates[i].ID)
		}
	}
	sort.Strings(present)
	return present
}

// studentSeen reports whether any (enrolled, detected) pair matches.
func (m *Matcher) studentSeen(detected [][]float64, s *Student) bool {
	for _, enrolled := range s.Face.Embeddings {
		for _, d := range detected {
			ok, err := embedding.IsMatch(enrolled, d, m.tolerance)
			if err != nil {
				// Malformed pair; keep going with the rest.
				continue
			}
			if ok {
				return true
			}
		}
	}
	return false
}

// prefilter narrows a large roster down to students whose nearest
// enrolled embedding is plausibly within tolerance of some detected
// face. The exact comparator still confirms every candidate, so the
// prefilter can only skip work, not change a verdict from the exact
// path for the candidates it returns.
func (m *Matcher) prefilter(detected [][]float64, students []Student) []Student {
	idx := NewIndex()
	if err := idx.Build(students); err != nil {
		return students // fall back to brute force
	}

	candidateIDs := make(map[string]bool)
	for _, d := range detected {
		for _, id := range idx.Candidates(d, m.tolerance) {
			candidateIDs[id] = true
		}
	}

	candidates := make([]Student, 0, len(candidateIDs))
	for i := range students {
		if candidateIDs[students[i].ID] {
			candidates = append(candidates, students[i])
		}
	}
	return candidates
}
