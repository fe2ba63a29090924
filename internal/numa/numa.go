// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package numa implements weighted NUMA node binding for arena pages, the
// "-W node:weight,..." flag in spec.md 6. A page is bound to a node sampled
// from the cumulative weight distribution, then touched so the binding is
// realized immediately (done by the caller, internal/arena).
package numa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudbench/multichase/internal/rng"
)

// Weight is one node:weight pair.
type Weight struct {
	Node   int
	Weight float64
}

// ParseWeights parses a "-W" argument like "0:1,1:3" into Weights.
func ParseWeights(s string) ([]Weight, error) {
	if s == "" {
		return nil, fmt.Errorf("numa: empty weight list")
	}
	var out []Weight
	for _, part := range strings.Split(s, ",") {
		nodeStr, weightStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("numa: malformed weight entry %q, want node:weight", part)
		}
		node, err := strconv.Atoi(nodeStr)
		if err != nil {
			return nil, fmt.Errorf("numa: invalid node in %q: %w", part, err)
		}
		weight, err := strconv.ParseFloat(weightStr, 64)
		if err != nil {
			return nil, fmt.Errorf("numa: invalid weight in %q: %w", part, err)
		}
		if weight < 0 {
			return nil, fmt.Errorf("numa: negative weight in %q", part)
		}
		out = append(out, Weight{Node: node, Weight: weight})
	}
	return out, nil
}

// Binder samples a NUMA node per page from a cumulative weight
// distribution and binds that page to the sampled node via the
// platform-specific bindNode. It implements internal/arena.NUMABinder.
type Binder struct {
	nodes []int
	cumul []float64 // cumulative weights, last entry == total
	total float64
	src   rng.Source
}

// NewBinder builds a Binder from parsed weights, seeded deterministically
// so repeated runs bind the same pages to the same nodes.
func NewBinder(weights []Weight, seed int) (*Binder, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("numa: no weights supplied")
	}
	b := &Binder{src: rng.NewLCG(seed)}
	running := 0.0
	for _, w := range weights {
		running += w.Weight
		b.nodes = append(b.nodes, w.Node)
		b.cumul = append(b.cumul, running)
	}
	b.total = running
	if b.total <= 0 {
		return nil, fmt.Errorf("numa: total weight must be positive")
	}
	return b, nil
}

// sampleNode draws a node from the cumulative distribution.
func (b *Binder) sampleNode() int {
	// Scale the draw by a fixed-point factor so the LCG's integer
	// interface can sample a floating-point distribution.
	const scale = 1 << 20
	draw := float64(b.src.Int(uint64(scale))) / float64(scale) * b.total
	for i, c := range b.cumul {
		if draw <= c {
			return b.nodes[i]
		}
	}
	return b.nodes[len(b.nodes)-1]
}

// BindPage binds the page starting at addr, of the given length, to a
// sampled node. Implements internal/arena.NUMABinder.
func (b *Binder) BindPage(addr uintptr, length int) error {
	return bindNode(addr, length, b.sampleNode())
}
