// Package registry implements the mnemonic factory the CLI looks
// algorithms up by. spec.md calls this out as an external collaborator
// named only by interface; a runnable CLI needs a concrete one, so
// this is the minimal process-wide mnemonic->constructor map behind
// that interface.
package registry

import (
	"fmt"
	"sync"

	"github.com/niceyeti/genevo/internal/engine"
)

// Constructor builds a ready-to-run engine.Algorithm from a raw
// algorithm-specific config value (typically decoded by
// internal/config.LoadInto into a struct the constructor knows how to
// read).
type Constructor func(cfg interface{}) (engine.Algorithm, error)

// Registry maps mnemonics ("ea", "swarm", "scan", "gd") to
// constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

// Register associates a mnemonic with a constructor. Re-registering a
// mnemonic overwrites the prior entry, useful for tests substituting a
// fake algorithm.
func (r *Registry) Register(mnemonic string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[mnemonic] = ctor
}

// Build looks up mnemonic and invokes its constructor with cfg.
func (r *Registry) Build(mnemonic string, cfg interface{}) (engine.Algorithm, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[mnemonic]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown algorithm mnemonic %q", mnemonic)
	}
	return ctor(cfg)
}

// Mnemonics lists every registered mnemonic, for CLI usage text.
func (r *Registry) Mnemonics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for m := range r.ctors {
		out = append(out, m)
	}
	return out
}

var defaultRegistry = New()

// Default returns the process-wide registry cmd/optimize registers
// the built-in algorithms into at startup.
func Default() *Registry { return defaultRegistry }
