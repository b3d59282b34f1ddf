// Package checkpoint serializes and restores a population's state to
// disk, in both a binary (gob) and a text (yaml) encoding, per spec
// §9's two-encoding checkpoint requirement. It assumes the caller has
// already reconstructed a population of the right shape (same
// parameter-tree layout as when it was saved) and only needs its
// values, fitness, and bookkeeping restored into it.
package checkpoint

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/param"
	"github.com/niceyeti/genevo/internal/population"
)

// CandidateSnapshot is the exported mirror of candidate.Candidate used
// for serialization: parameter values by leaf name instead of the
// param.Node interface tree (gob/yaml can't encode an interface
// without registering every concrete type it might hold), plus the
// private state-machine fields candidate.Candidate doesn't export.
type CandidateSnapshot struct {
	Float64 map[string][]float64
	Float32 map[string][]float32
	Int32   map[string][]int32
	Bool    map[string][]bool

	Maximize  bool
	WorstCase float64

	Primary   candidate.FitnessValue
	Secondary []candidate.FitnessValue

	Traits candidate.PersonalityTraits

	EvaluationID      string
	AssignedIteration uint64
	InsertionSeq      uint64
	IsSubstitute      bool

	Dirty   bool
	Invalid bool
	Status  candidate.ProcessingStatus
}

// Snapshot captures c's current values and state into a plain DTO.
func Snapshot(c *candidate.Candidate) CandidateSnapshot {
	return CandidateSnapshot{
		Float64:           param.StreamlineFloat64Named(c.Params),
		Float32:           param.StreamlineFloat32Named(c.Params),
		Int32:             param.StreamlineInt32Named(c.Params),
		Bool:              param.StreamlineBoolNamed(c.Params),
		Maximize:          c.Maximize,
		WorstCase:         c.WorstCase,
		Primary:           c.Primary,
		Secondary:         append([]candidate.FitnessValue(nil), c.Secondary...),
		Traits:            c.Traits,
		EvaluationID:      c.EvaluationID,
		AssignedIteration: c.AssignedIteration,
		InsertionSeq:      c.InsertionSeq,
		IsSubstitute:      c.IsSubstitute,
		Dirty:             c.IsDirty(),
		Invalid:           c.IsInvalid(),
		Status:            c.Status(),
	}
}

// Restore writes snap's values and state into c. c's parameter tree
// must already have the same leaf names as when snap was taken; the
// leaf values are assigned by name, everything else overwritten
// wholesale.
func Restore(c *candidate.Candidate, snap CandidateSnapshot) error {
	if err := param.AssignFloat64Named(c.Params, snap.Float64); err != nil {
		return fmt.Errorf("checkpoint: restoring float64 leaves: %w", err)
	}
	if err := param.AssignFloat32Named(c.Params, snap.Float32); err != nil {
		return fmt.Errorf("checkpoint: restoring float32 leaves: %w", err)
	}
	if err := param.AssignInt32Named(c.Params, snap.Int32); err != nil {
		return fmt.Errorf("checkpoint: restoring int32 leaves: %w", err)
	}
	if err := param.AssignBoolNamed(c.Params, snap.Bool); err != nil {
		return fmt.Errorf("checkpoint: restoring bool leaves: %w", err)
	}

	c.Maximize = snap.Maximize
	c.WorstCase = snap.WorstCase
	c.Primary = snap.Primary
	c.Secondary = append([]candidate.FitnessValue(nil), snap.Secondary...)
	c.Traits = snap.Traits
	c.EvaluationID = snap.EvaluationID
	c.AssignedIteration = snap.AssignedIteration
	c.InsertionSeq = snap.InsertionSeq
	c.IsSubstitute = snap.IsSubstitute
	c.RestoreState(snap.Dirty, snap.Invalid, snap.Status)
	return nil
}

// PopulationSnapshot is the full on-disk checkpoint payload: every
// member's snapshot plus the run metadata the filename also encodes.
type PopulationSnapshot struct {
	DefaultSize     int
	Members         []CandidateSnapshot
	Iteration       uint64
	BestTransformed float64
}

// SnapshotPopulation captures every member of pop.
func SnapshotPopulation(pop *population.Population, iteration uint64, bestTransformed float64) PopulationSnapshot {
	members := make([]CandidateSnapshot, len(pop.Members))
	for i, c := range pop.Members {
		members[i] = Snapshot(c)
	}
	return PopulationSnapshot{
		DefaultSize:     pop.DefaultSize,
		Members:         members,
		Iteration:       iteration,
		BestTransformed: bestTransformed,
	}
}

// RestorePopulation writes snap's members back into pop, by position.
// pop must already hold exactly len(snap.Members) candidates with
// matching parameter-tree shapes; RestorePopulation never grows or
// shrinks pop.Members.
func RestorePopulation(pop *population.Population, snap PopulationSnapshot) error {
	if len(pop.Members) != len(snap.Members) {
		return fmt.Errorf("checkpoint: population has %d members, snapshot has %d", len(pop.Members), len(snap.Members))
	}
	pop.DefaultSize = snap.DefaultSize
	for i, c := range pop.Members {
		if err := Restore(c, snap.Members[i]); err != nil {
			return fmt.Errorf("checkpoint: restoring member %d: %w", i, err)
		}
	}
	return nil
}

// EncodeGob serializes snap with encoding/gob.
func EncodeGob(snap PopulationSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("checkpoint: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeGob deserializes a gob-encoded PopulationSnapshot.
func DecodeGob(data []byte) (PopulationSnapshot, error) {
	var snap PopulationSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return PopulationSnapshot{}, fmt.Errorf("checkpoint: gob decode: %w", err)
	}
	return snap, nil
}

// EncodeYAML serializes snap as human-readable YAML.
func EncodeYAML(snap PopulationSnapshot) ([]byte, error) {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: yaml encode: %w", err)
	}
	return data, nil
}

// DecodeYAML deserializes a YAML-encoded PopulationSnapshot.
func DecodeYAML(data []byte) (PopulationSnapshot, error) {
	var snap PopulationSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return PopulationSnapshot{}, fmt.Errorf("checkpoint: yaml decode: %w", err)
	}
	return snap, nil
}

// Format selects the on-disk checkpoint encoding.
type Format int

const (
	Binary Format = iota
	Text
)

func (f Format) extension() string {
	if f == Text {
		return ".yaml"
	}
	return ".gob"
}

// Store is a ready-to-use engine.Checkpointer bound to one population
// and directory. Save reads pop's current members at call time, so the
// caller only needs to construct Store once per run.
type Store struct {
	Dir    string
	Format Format
	Pop    *population.Population
}

// NewStore returns a Store that writes checkpoints for pop into dir.
func NewStore(dir string, format Format, pop *population.Population) *Store {
	return &Store{Dir: dir, Format: format, Pop: pop}
}

// Save implements engine.Checkpointer. The filename is
// "<iteration>_<bestTransformed>_<baseName><ext>", per spec §9.
func (s *Store) Save(iteration uint64, bestTransformed float64, baseName string) error {
	snap := SnapshotPopulation(s.Pop, iteration, bestTransformed)

	var data []byte
	var err error
	switch s.Format {
	case Text:
		data, err = EncodeYAML(snap)
	default:
		data, err = EncodeGob(snap)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: creating directory %s: %w", s.Dir, err)
	}

	name := fmt.Sprintf("%d_%s_%s%s", iteration, strconv.FormatFloat(bestTransformed, 'g', -1, 64), baseName, s.Format.extension())
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: writing %s: %w", path, err)
	}
	return nil
}

// Load reads and decodes the checkpoint at path, sniffing the encoding
// from its extension.
func Load(path string) (PopulationSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PopulationSnapshot{}, fmt.Errorf("checkpoint: reading %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".yaml") {
		return DecodeYAML(data)
	}
	return DecodeGob(data)
}

// LoadInto reads the checkpoint at path and restores it into s.Pop.
func (s *Store) LoadInto(path string) error {
	snap, err := Load(path)
	if err != nil {
		return err
	}
	return RestorePopulation(s.Pop, snap)
}

var _ interface {
	Save(iteration uint64, bestTransformed float64, baseName string) error
} = (*Store)(nil)
