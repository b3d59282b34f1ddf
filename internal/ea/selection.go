package ea

import (
	"sort"

	"github.com/niceyeti/genevo/internal/candidate"
)

// paretoSelect implements spec §4.4's multi-criterion selection:
// non-dominated sorting into fronts, front members flagged
// IsOnParetoFront, fronts consumed front-to-back until Mu parent slots
// are filled, with crowding distance breaking ties within the last
// (partially consumed) front.
func (e *EA) paretoSelect(parents, children []*candidate.Candidate) []*candidate.Candidate {
	pool := append(append([]*candidate.Candidate{}, parents...), children...)
	fronts := nonDominatedSort(pool)

	survivors := make([]*candidate.Candidate, 0, e.Mu)
	for i, front := range fronts {
		if i == 0 {
			for _, c := range front {
				c.Traits.EA.IsOnParetoFront = true
			}
		}
		if len(survivors)+len(front) <= e.Mu {
			survivors = append(survivors, front...)
			continue
		}
		remaining := e.Mu - len(survivors)
		if remaining <= 0 {
			break
		}
		byCrowding := crowdingSort(front)
		survivors = append(survivors, byCrowding[:remaining]...)
		break
	}
	return survivors
}

// nonDominatedSort partitions candidates into Pareto fronts: front 0 is
// dominated by nothing in the pool, front 1 is dominated only by front
// 0 members, and so on (the standard NSGA-II fast non-dominated sort).
func nonDominatedSort(pool []*candidate.Candidate) [][]*candidate.Candidate {
	n := len(pool)
	dominationCount := make([]int, n)
	dominates := make([][]int, n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if pool[i].Dominates(pool[j]) {
				dominates[i] = append(dominates[i], j)
			} else if pool[j].Dominates(pool[i]) {
				dominationCount[i]++
			}
		}
	}

	var fronts [][]int
	current := []int{}
	for i := 0; i < n; i++ {
		if dominationCount[i] == 0 {
			current = append(current, i)
		}
	}
	for len(current) > 0 {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			for _, j := range dominates[i] {
				dominationCount[j]--
				if dominationCount[j] == 0 {
					next = append(next, j)
				}
			}
		}
		current = next
	}

	out := make([][]*candidate.Candidate, len(fronts))
	for fi, idxs := range fronts {
		for _, i := range idxs {
			out[fi] = append(out[fi], pool[i])
		}
	}
	return out
}

// crowdingSort orders one front by descending crowding distance
// (boundary points first), the standard NSGA-II diversity tie-break.
func crowdingSort(front []*candidate.Candidate) []*candidate.Candidate {
	n := len(front)
	if n <= 2 {
		return append([]*candidate.Candidate{}, front...)
	}

	distance := make([]float64, n)
	criteria := front[0].Criteria()

	values := func(c *candidate.Candidate, k int) float64 {
		if k == 0 {
			return c.Primary.Transformed
		}
		return c.Secondary[k-1].Transformed
	}

	for k := 0; k < criteria; k++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool {
			return values(front[idx[a]], k) < values(front[idx[b]], k)
		})

		lo, hi := values(front[idx[0]], k), values(front[idx[n-1]], k)
		distance[idx[0]] = maxFloat
		distance[idx[n-1]] = maxFloat
		if hi == lo {
			continue
		}
		for i := 1; i < n-1; i++ {
			distance[idx[i]] += (values(front[idx[i+1]], k) - values(front[idx[i-1]], k)) / (hi - lo)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return distance[order[a]] > distance[order[b]]
	})

	sorted := make([]*candidate.Candidate, n)
	for i, o := range order {
		sorted[i] = front[o]
	}
	return sorted
}

const maxFloat = 1.7976931348623157e+308
