package candidate

// PersonalityKind discriminates which algorithm's annotations a
// candidate's PersonalityTraits currently holds. Go has no sum types;
// per spec §9's design notes this is re-implemented as a product type
// with a tag, and algorithms dispatch on Kind rather than a vtable.
type PersonalityKind int

const (
	KindNone PersonalityKind = iota
	KindEA
	KindSwarm
	KindGradientDescent
	KindScan
)

// EAPersonality carries the evolutionary-algorithm annotations of
// spec §3: how many generations this item has survived as a parent,
// its position in the sorted population, its parent's identity (if any)
// and whether it currently sits on the Pareto front.
type EAPersonality struct {
	// ParentCounter is 0 for a child, >=1 for how many generations this
	// item has been a parent.
	ParentCounter int
	// PopulationPosition is this candidate's index after the last sort.
	PopulationPosition int
	// ParentID is the population index of this child's parent, or -1.
	ParentID int
	// IsOnParetoFront is set by non-dominated sorting in multi-criterion
	// mode.
	IsOnParetoFront bool
}

// SwarmPersonality carries the particle-swarm annotations of spec §3.
// LocalBestID/GlobalBestID index into the algorithm-owned best-table
// (never a pointer to a live population member), per spec §9's note on
// avoiding cyclic references.
type SwarmPersonality struct {
	NeighborhoodID int
	LocalBestID    int
	GlobalBestID   int
	CLocal         float64
	CGlobal        float64
	CDelta         float64
	// ResamplePerIteration: when true, CLocal/CGlobal/CDelta are redrawn
	// from CLocalRange/CGlobalRange/CDeltaRange every iteration instead
	// of staying fixed.
	ResamplePerIteration bool
	CLocalRange          [2]float64
	CGlobalRange         [2]float64
	CDeltaRange          [2]float64
	// SkipPositionUpdate tags a freshly random-initialized item to skip
	// the swarm update this cycle.
	SkipPositionUpdate bool
	Velocity           []float64
}

// GradientDescentPersonality carries the minimal step bookkeeping a
// finite-difference gradient step needs.
type GradientDescentPersonality struct {
	StepSize  float64
	StepIndex int
}

// ScanPersonality carries the parameter-scan's position in its grid.
type ScanPersonality struct {
	ScanIndex int
}

// PersonalityTraits is the tagged variant attached to every candidate.
// Only the field matching Kind is meaningful; the others are zero value.
type PersonalityTraits struct {
	Kind  PersonalityKind
	EA    EAPersonality
	Swarm SwarmPersonality
	GD    GradientDescentPersonality
	Scan  ScanPersonality
}

// NewEATraits returns traits for a freshly created EA candidate (a
// child: ParentCounter 0, no parent yet).
func NewEATraits() PersonalityTraits {
	return PersonalityTraits{Kind: KindEA, EA: EAPersonality{ParentID: -1}}
}
