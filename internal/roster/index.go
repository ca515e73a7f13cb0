package roster

import (
	"errors"
	"fmt"

	"github.com/coder/hnsw"

	"github.com/facemark/facemark/internal/embedding"
)

// HNSW parameters for the enrolled-embedding candidate index.
const (
	// indexMaxNeighbors (M) is the maximum number of neighbors per node.
	indexMaxNeighbors = 16

	// indexSearchK is how many nearest nodes each detected face pulls
	// from the graph before exact confirmation.
	indexSearchK = 64

	// indexSlack widens the tolerance during prefiltering so the
	// approximate search does not drop borderline candidates before
	// the exact comparator sees them.
	indexSlack = 1.5
)

// Index is an in-memory HNSW graph over all enrolled embeddings of a
// roster, used to prefilter candidate students for large classes.
type Index struct {
	graph *hnsw.Graph[string]
	owner map[string]string // node key -> student ID
	vecs  map[string][]float64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		owner: make(map[string]string),
		vecs:  make(map[string][]float64),
	}
}

// Build indexes every enrolled embedding of every student. Each
// embedding becomes one node keyed "studentID/i".
func (idx *Index) Build(students []Student) error {
	g := hnsw.NewGraph[string]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	added := 0
	for i := range students {
		s := &students[i]
		for j, emb := range s.Face.Embeddings {
			if len(emb) == 0 {
				continue
			}
			key := fmt.Sprintf("%s/%d", s.ID, j)
			g.Add(hnsw.MakeNode(key, toFloat32(emb)))
			idx.owner[key] = s.ID
			idx.vecs[key] = emb
			added++
		}
	}
	if added == 0 {
		return errors.New("no enrolled embeddings to index")
	}

	idx.graph = g
	return nil
}

// Len returns the number of indexed embeddings.
func (idx *Index) Len() int {
	return len(idx.owner)
}

// Candidates returns the IDs of students owning an indexed embedding
// near the query. The result over-approximates: callers must confirm
// every candidate with the exact comparator.
func (idx *Index) Candidates(query []float64, tolerance float64) []string {
	if idx.graph == nil {
		return nil
	}

	neighbors := idx.graph.Search(toFloat32(query), indexSearchK)

	seen := make(map[string]bool)
	var ids []string
	for _, n := range neighbors {
		vec, ok := idx.vecs[n.Key]
		if !ok {
			continue
		}
		d, err := embedding.Distance(query, vec)
		if err != nil || d > tolerance*indexSlack {
			continue
		}
		id := idx.owner[n.Key]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
