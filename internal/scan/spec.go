// Package scan implements the parameter-scan specialization: either an
// exhaustive grid over declared dimensions or N uniformly-random
// probes, per the `d(id,min,max,steps)` / `s(N)` grammar of spec §6.
package scan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is a scanned dimension's value domain.
type Kind int

const (
	KindDouble Kind = iota
	KindFloat
	KindInt32
	KindBool
)

// Dim is one declared scan dimension: `d(id,min,max,steps)` parses into
// one of these (a b() dimension walks min..max like the others and reads
// each value as true when it is at least 0.5).
type Dim struct {
	Kind  Kind
	ID    int
	Min   float64
	Max   float64
	Steps int
}

// Mode selects whether the scan walks Dims as an exhaustive grid or
// draws SampleCount uniformly-random probes across their ranges.
type Mode int

const (
	Grid Mode = iota
	Sample
)

// Spec is a parsed `--parameterSpec` string.
type Spec struct {
	Dims        []Dim
	Mode        Mode
	SampleCount int
}

var (
	dimPattern    = regexp.MustCompile(`^([dfib])\(\s*(\d+)\s*,\s*([^,]+)\s*,\s*([^,]+)\s*,\s*(\d+)\s*\)$`)
	samplePattern = regexp.MustCompile(`^s\(\s*(\d+)\s*\)$`)
)

// Parse parses a comma-separated parameter-spec string, per spec §6's
// grammar: `d(id,min,max,steps)`, and `f(...)`, `i(...)`, `b(...)` with
// the same four arguments, or a single `s(N)` item that switches the
// whole scan to random-probe mode.
func Parse(s string) (*Spec, error) {
	spec := &Spec{}
	// Split on every comma, then re-join the pieces of an item whose own
	// argument list was split, i.e. while its parens are unbalanced.
	var items []string
	for _, tok := range strings.Split(s, ",") {
		if n := len(items); n > 0 && strings.Count(items[n-1], "(") > strings.Count(items[n-1], ")") {
			items[n-1] += "," + tok
		} else {
			items = append(items, tok)
		}
	}
	for _, raw := range items {
		item := strings.TrimSpace(raw)
		if item == "" {
			continue
		}
		dim, sampleN, err := parseItem(item)
		if err != nil {
			return nil, err
		}
		if sampleN > 0 {
			spec.Mode = Sample
			spec.SampleCount = sampleN
			continue
		}
		spec.Dims = append(spec.Dims, dim)
	}
	if len(spec.Dims) == 0 && spec.Mode != Sample {
		return nil, fmt.Errorf("scan: empty parameter spec")
	}
	return spec, nil
}

// parseItem parses one whole `kind(...)` item, as Parse re-joins it,
// into either a Dim or a sample count.
func parseItem(item string) (Dim, int, error) {
	if m := samplePattern.FindStringSubmatch(item); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Dim{}, n, nil
	}
	m := dimPattern.FindStringSubmatch(item)
	if m == nil {
		return Dim{}, 0, fmt.Errorf("scan: malformed parameter spec item %q", item)
	}
	kind, err := parseKind(m[1])
	if err != nil {
		return Dim{}, 0, err
	}
	id, _ := strconv.Atoi(m[2])
	min, err := strconv.ParseFloat(strings.TrimSpace(m[3]), 64)
	if err != nil {
		return Dim{}, 0, fmt.Errorf("scan: bad min in %q: %w", item, err)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(m[4]), 64)
	if err != nil {
		return Dim{}, 0, fmt.Errorf("scan: bad max in %q: %w", item, err)
	}
	steps, _ := strconv.Atoi(m[5])
	return Dim{Kind: kind, ID: id, Min: min, Max: max, Steps: steps}, 0, nil
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "d":
		return KindDouble, nil
	case "f":
		return KindFloat, nil
	case "i":
		return KindInt32, nil
	case "b":
		return KindBool, nil
	default:
		return 0, fmt.Errorf("scan: unknown dimension kind %q", s)
	}
}
