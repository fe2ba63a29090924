// Copyright 2025 The multichase Authors. SPDX-License-Identifier: Apache-2.0

// Package rng provides the per-thread, seed-deterministic generators used to
// build chase permutations and mixer tables. Reproducibility given the same
// thread index is the load-bearing property: two runs on the same host with
// the same thread_num must draw the same sequence.
package rng

import "math/rand/v2"

// Source is a per-thread uniform generator on [0, limit].
type Source interface {
	// Int returns a value in [0, limit]. limit == 0 always returns 0.
	Int(limit uint64) uint64
}

// LCG is the historical linear congruential generator: the simplest
// generator that is deterministic in thread_num and good enough for arenas
// up to 2^36 bytes at 128-byte stride (~2^29 elements). Not cryptographic.
type LCG struct {
	state uint64
}

const (
	lcgA = 0x41c64e6d
	lcgB = 0x3039
	// lcgMod is 2^32; state is kept in the low 32 bits.
	lcgMod = 1 << 32
)

// NewLCG seeds an LCG deterministically from threadNum.
func NewLCG(threadNum int) *LCG {
	return &LCG{state: uint64(threadNum)}
}

func (g *LCG) next() uint32 {
	g.state = (lcgA*g.state + lcgB) % lcgMod
	return uint32(g.state)
}

// Int returns a uniform sample in [0, limit]. Uses rejection sampling over
// 32-bit draws to avoid modulo bias.
func (g *LCG) Int(limit uint64) uint64 {
	if limit == 0 {
		return 0
	}
	if limit >= lcgMod-1 {
		// Caller asked for a range wider than this generator's native
		// output; fold two draws together rather than fail outright.
		hi := uint64(g.next())
		lo := uint64(g.next())
		return (hi<<32 | lo) % (limit + 1)
	}
	span := limit + 1
	bound := (lcgMod / span) * span
	for {
		v := uint64(g.next())
		if v < bound {
			return v % span
		}
	}
}

// Platform is the reentrant-platform-library analogue: a PCG whose two
// 64-bit seed words (16 bytes of state) are derived from thread_num,
// documented per spec.md 4.B as an alternative, non-cryptographic, but
// higher-quality generator.
type Platform struct {
	r *rand.Rand
}

// NewPlatform seeds a Platform generator deterministically from threadNum.
func NewPlatform(threadNum int) *Platform {
	seed1 := uint64(threadNum)*0x9e3779b97f4a7c15 + 1
	seed2 := uint64(threadNum)*0xbf58476d1ce4e5b9 + 0x94d049bb133111eb
	return &Platform{r: rand.New(rand.NewPCG(seed1, seed2))}
}

// Int returns a uniform sample in [0, limit].
func (p *Platform) Int(limit uint64) uint64 {
	if limit == 0 {
		return 0
	}
	return p.r.Uint64N(limit + 1)
}
