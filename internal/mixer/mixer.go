// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package mixer builds the per-element stride-interior offset table that
// lets independent chases (one per thread, or several per thread under
// parallelism) share one arena without their pointer writes ever landing on
// the same byte.
package mixer

import "github.com/cloudbench/multichase/internal/rng"

// MinSlots is the floor applied to NR_MIXERS regardless of nr_threads *
// parallelism (spec.md 9, parameterised-NR_MIXERS open question).
const MinSlots = 64

// Table is the transposed mixer: Columns[j*Slots+i] is the j-th mixer index
// used by slot i. For every slot i, the length-NrMixerIndices column is a
// permutation of [0, NrMixerIndices).
//
// Construction: column i is a base permutation cyclically rotated by i
// (col_i[j] = (basePerm[j] + i) mod NrMixerIndices). This is the detail the
// spec leaves implicit in its MIXED formula: picking the lookup row
// deterministically from x (row = x mod NrMixerIndices, see Mixed below)
// means disjointness between two slots a and b can only be *guaranteed for
// every x* when a and b fall in different residue classes mod
// NrMixerIndices — i.e. when the caller never runs more concurrent chases
// than NrMixerIndices. The runner enforces that precondition (spec.md 7a,
// "too many threads for stride"); see TestDisjointness for the property as
// tested.
type Table struct {
	Slots          int // NR_MIXERS: power of two >= nr_threads*parallelism, floor MinSlots
	NrMixerIndices int // stride / base_object_size
	Columns        []int64
}

// SlotCount rounds nrThreads*parallelism up to a power of two no smaller
// than MinSlots.
func SlotCount(nrThreads, parallelism int) int {
	need := nrThreads * parallelism
	n := MinSlots
	for n < need {
		n <<= 1
	}
	return n
}

// Build generates a Table with the given slot count and nrMixerIndices
// (stride/baseObjectSize), seeded deterministically so that two runs on the
// same host produce the same mixer.
func Build(slots, nrMixerIndices int, seed int) *Table {
	t := &Table{
		Slots:          slots,
		NrMixerIndices: nrMixerIndices,
		Columns:        make([]int64, slots*nrMixerIndices),
	}

	base := make([]int64, nrMixerIndices)
	src := rng.NewLCG(seed)
	for j := 0; j < nrMixerIndices; j++ {
		k := int(src.Int(uint64(j)))
		base[j] = base[k]
		base[k] = int64(j)
	}

	n := int64(nrMixerIndices)
	for i := 0; i < slots; i++ {
		shift := int64(i) % n
		for j := 0; j < nrMixerIndices; j++ {
			t.Columns[j*slots+i] = (base[j] + shift) % n
		}
	}
	return t
}

// At returns the mixer-index column j used by slot i.
func (t *Table) At(i, j int) int64 {
	return t.Columns[j*t.Slots+i]
}

// Mixed computes MIXED(x, slot): the absolute byte offset from the arena's
// chase base for element index x under mixer slot `slot`, given the
// element stride. The lookup row is x mod NrMixerIndices, the one choice
// that keeps the table dimensionally consistent with its own shape (see
// the Table doc comment).
//
// This is the transpose of spec.md 3's mixer_i[x & (NR_MIXERS-1)]: there
// the element index picks the slot and mixer_idx picks the row, so large
// NR_MIXERS gives every element its own per-element spread. Here mixer_idx
// (the `slot` argument) picks the column and x mod NrMixerIndices picks the
// row instead, which keeps S3 and the disjointness property (property 4)
// under the documented nr_threads*parallelism <= NrMixerIndices precondition,
// but trades away that per-element spread -- two elements in the same
// residue class mod NrMixerIndices always land on the same offset within a
// given slot's cycle, where the spec's version would vary them by NR_MIXERS
// instead of NrMixerIndices.
func (t *Table) Mixed(x int64, slot int, stride int64) int64 {
	row := int(x % int64(t.NrMixerIndices))
	mixerI := t.At(slot, row)
	return x*stride + mixerI*(stride/int64(t.NrMixerIndices))
}
