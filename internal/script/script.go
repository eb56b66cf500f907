// Package script loads the JSON scenario files the CLI runs: which graph
// types exist, which blocks to place, which packets to insert and how
// long to simulate.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kyralis/blockflow-go/internal/geom"
)

// Behavior names accepted in kind specs.
const (
	BehaviorTransport = "transport"
	BehaviorSink      = "sink"
)

// ErrInvalidScenario wraps every validation failure.
var ErrInvalidScenario = errors.New("script: invalid scenario")

// Cell is a grid position in scenario files.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Grid converts to the engine's cell type.
func (c Cell) Grid() geom.Cell { return geom.Cell{X: c.X, Y: c.Y, Z: c.Z} }

// KindSpec binds one block kind to a behavior within a graph type.
type KindSpec struct {
	Kind         string `json:"kind"`
	Behavior     string `json:"behavior"`
	TicksPerCell int    `json:"ticksPerCell,omitempty"`
}

// TypeSpec declares one graph type and the kinds it owns.
type TypeSpec struct {
	Name  string     `json:"name"`
	Kinds []KindSpec `json:"kinds"`
}

// Block places one block before the simulation starts. Placement order
// matters: graphs grow and merge change by change.
type Block struct {
	Kind string `json:"kind"`
	At   Cell   `json:"at"`
}

// Insertion puts a packet into the network at the node claiming a cell.
type Insertion struct {
	ID      uint64 `json:"id"`
	Payload string `json:"payload,omitempty"`
	At      Cell   `json:"at"`
	Tick    uint64 `json:"tick"`
}

// Scenario is one runnable setup.
type Scenario struct {
	Name    string      `json:"name"`
	Ticks   uint64      `json:"ticks"`
	Types   []TypeSpec  `json:"types"`
	Blocks  []Block     `json:"blocks"`
	Packets []Insertion `json:"packets"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	var s Scenario
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("script: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks referential consistency: every block kind is declared
// by exactly one type, behaviors are known, insertions land on placed
// blocks and inside the simulated tick range.
func (s *Scenario) Validate() error {
	if len(s.Types) == 0 {
		return fmt.Errorf("%w: no graph types declared", ErrInvalidScenario)
	}
	kinds := make(map[string]bool)
	for ti, t := range s.Types {
		if len(t.Kinds) == 0 {
			return fmt.Errorf("%w: type %q declares no kinds", ErrInvalidScenario, t.Name)
		}
		for _, k := range t.Kinds {
			if k.Kind == "" {
				return fmt.Errorf("%w: type %q has an unnamed kind", ErrInvalidScenario, t.Name)
			}
			if kinds[k.Kind] {
				return fmt.Errorf("%w: kind %q declared twice", ErrInvalidScenario, k.Kind)
			}
			switch k.Behavior {
			case BehaviorTransport, BehaviorSink:
			default:
				return fmt.Errorf("%w: kind %q has unknown behavior %q (type %d)",
					ErrInvalidScenario, k.Kind, k.Behavior, ti)
			}
			kinds[k.Kind] = true
		}
	}

	placed := make(map[Cell]bool)
	for i, b := range s.Blocks {
		if !kinds[b.Kind] {
			return fmt.Errorf("%w: block %d uses undeclared kind %q", ErrInvalidScenario, i, b.Kind)
		}
		if placed[b.At] {
			return fmt.Errorf("%w: duplicate block at %v", ErrInvalidScenario, b.At.Grid())
		}
		placed[b.At] = true
	}

	seen := make(map[uint64]bool)
	for i, p := range s.Packets {
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate packet id %d", ErrInvalidScenario, p.ID)
		}
		seen[p.ID] = true
		if !placed[p.At] {
			return fmt.Errorf("%w: packet %d inserted at empty cell %v", ErrInvalidScenario, i, p.At.Grid())
		}
		if s.Ticks > 0 && p.Tick >= s.Ticks {
			return fmt.Errorf("%w: packet %d inserted at tick %d past the %d-tick run",
				ErrInvalidScenario, i, p.Tick, s.Ticks)
		}
	}
	return nil
}
