package batch

import (
	"sort"

	"github.com/google/uuid"

	"github.com/openlingo/openlingo-backend/internal/ingestion/textutil"
)

// DuplicateCluster groups outputs whose title+summary similarity exceeds the
// threshold. Similarity is the minimum pairwise score inside the cluster.
type DuplicateCluster struct {
	JobIDs     []uuid.UUID `json:"job_ids"`
	Similarity float64     `json:"similarity"`
}

// FindDuplicates clusters near-duplicate outputs by normalized token-overlap
// (Jaccard) over the given texts. Pairwise similarity is symmetric and
// clustering is transitive: if A~B and B~C all three land in one cluster even
// when A~C alone would not cross the threshold.
func FindDuplicates(ids []uuid.UUID, texts []string, threshold float64) []DuplicateCluster {
	n := len(ids)
	if n < 2 || n != len(texts) {
		return nil
	}
	sets := make([]map[string]bool, n)
	for i, t := range texts {
		sets[i] = tokenSet(t)
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	type edge struct {
		a, b int
		sim  float64
	}
	var edges []edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := jaccard(sets[i], sets[j])
			if sim < threshold {
				continue
			}
			union(i, j)
			edges = append(edges, edge{a: i, b: j, sim: sim})
		}
	}

	// Cluster similarity is its weakest accepted link, resolved after all
	// unions so merged clusters report correctly.
	minSim := map[int]float64{}
	for _, e := range edges {
		root := find(e.a)
		if cur, ok := minSim[root]; !ok || e.sim < cur {
			minSim[root] = e.sim
		}
	}

	groups := map[int][]int{}
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	var out []DuplicateCluster
	for root, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		cluster := DuplicateCluster{Similarity: minSim[root]}
		for _, i := range idxs {
			cluster.JobIDs = append(cluster.JobIDs, ids[i])
		}
		sort.Slice(cluster.JobIDs, func(a, b int) bool {
			return cluster.JobIDs[a].String() < cluster.JobIDs[b].String()
		})
		out = append(out, cluster)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].JobIDs[0].String() < out[b].JobIDs[0].String()
	})
	return out
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range textutil.Words(text) {
		set[w] = true
	}
	return set
}

// jaccard is |A∩B| / |A∪B|; two empty sets are not similar.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	unionSize := len(a) + len(b) - inter
	if unionSize == 0 {
		return 0
	}
	return float64(inter) / float64(unionSize)
}
