// Package population implements the ordered candidate sequence every
// algorithm drives: parent/child layout for EA, neighborhood partitions
// for swarm, and the resize/trim operations the broker's reception loop
// and the algorithms' post-selection bookkeeping need.
package population

import "github.com/niceyeti/genevo/internal/candidate"

// Population is an ordered sequence of candidates with a declared
// default size, per spec §3. Size may transiently exceed DefaultSize
// when late arrivals return; Resize brings it back down.
type Population struct {
	DefaultSize int
	Members     []*candidate.Candidate
}

// New returns an empty population with the given default size.
func New(defaultSize int) *Population {
	return &Population{DefaultSize: defaultSize}
}

func (p *Population) Len() int { return len(p.Members) }

// Resize trims Members down to n, discarding the tail. It never grows
// the population; callers needing growth must clone-and-randomize
// themselves (the substitute-fill semantics differ per algorithm).
func (p *Population) Resize(n int) {
	if n < len(p.Members) {
		p.Members = p.Members[:n]
	}
}

// FillBySubstitution clones randomly chosen current Members (drawn with
// rng.Intn, so one member may be cloned more than once) until the
// population reaches DefaultSize, marking each clone IsSubstitute. Used
// by the Broker executor's reception-timeout recovery (spec §4.2 step 5)
// and by swarm's neighborhood repair in CycleLogic.
func (p *Population) FillBySubstitution(rng interface {
	Intn(int) int
}) []*candidate.Candidate {
	var added []*candidate.Candidate
	if len(p.Members) == 0 {
		return added
	}
	for len(p.Members) < p.DefaultSize {
		src := p.Members[rng.Intn(len(p.Members))]
		clone := src.Clone()
		clone.IsSubstitute = true
		p.Members = append(p.Members, clone)
		added = append(added, clone)
	}
	return added
}

// Best returns the index of the best member by IsBetterThan, or -1 if
// the population is empty. Invalid candidates still participate (they
// simply lose every comparison against a valid worst-case-free member).
func (p *Population) Best() int {
	best := -1
	for i, c := range p.Members {
		if best == -1 || c.IsBetterThan(p.Members[best]) {
			best = i
		}
	}
	return best
}

// Partition splits Members into k neighborhoods of the given sizes,
// trimming surplus members beyond the sum of sizes from the tail of
// Members and reporting how many are missing from each (for swarm's
// per-cycle neighborhood repair).
func (p *Population) Partition(sizes []int) (groups [][]*candidate.Candidate, missing []int) {
	groups = make([][]*candidate.Candidate, len(sizes))
	missing = make([]int, len(sizes))
	idx := 0
	for i, size := range sizes {
		remaining := len(p.Members) - idx
		take := size
		if take > remaining {
			take = remaining
		}
		if take < 0 {
			take = 0
		}
		groups[i] = p.Members[idx : idx+take]
		idx += take
		if take < size {
			missing[i] = size - take
		}
	}
	if idx < len(p.Members) {
		p.Members = p.Members[:idx]
	}
	return groups, missing
}
