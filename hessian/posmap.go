// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hessian assigns compact positions to the structurally nonzero
// entries of a sparse Lagrangian Hessian shared by many constraints.
package hessian

import (
	"github.com/curioloop/nlexpr/expr"
)

// PosMap maps lower triangle variable pairs to positions 0, 1, 2, ... in
// order of first registration. A registered pair keeps its position for the
// lifetime of the map, so every contribution to the same pair accumulates
// into one slot of the solver's Hessian values.
//
// The zero PosMap is empty and ready to use. Registration is single-writer;
// once frozen the map is read-only and safe for concurrent Lookup.
type PosMap struct {
	pos    map[expr.Pair]int
	pairs  []expr.Pair
	frozen bool
}

// NewPosMap returns an empty map.
func NewPosMap() *PosMap { return new(PosMap) }

// Register returns the position of the pair, allocating the next free
// position on first sight. The pair is normalised to the lower triangle.
// It panics when a new pair is registered after Freeze.
func (m *PosMap) Register(p expr.Pair) int {
	p = expr.NewPair(p.Row, p.Col)
	if k, ok := m.pos[p]; ok {
		return k
	}
	if m.frozen {
		panic("hessian: register " + p.String() + " after freeze")
	}
	if m.pos == nil {
		m.pos = make(map[expr.Pair]int)
	}
	k := len(m.pairs)
	m.pos[p] = k
	m.pairs = append(m.pairs, p)
	return k
}

// Lookup returns the position of the pair, if registered.
func (m *PosMap) Lookup(p expr.Pair) (int, bool) {
	k, ok := m.pos[expr.NewPair(p.Row, p.Col)]
	return k, ok
}

// Len returns the number of registered pairs.
func (m *PosMap) Len() int { return len(m.pairs) }

// Pairs returns the registered pairs indexed by position.
func (m *PosMap) Pairs() []expr.Pair { return m.pairs[:len(m.pairs):len(m.pairs)] }

// Freeze ends the registration phase.
func (m *PosMap) Freeze() { m.frozen = true }

// Frozen reports whether Freeze was called.
func (m *PosMap) Frozen() bool { return m.frozen }

// Structure writes the row and column of every position to iRow and jCol.
// It panics if either is shorter than Len.
func (m *PosMap) Structure(iRow, jCol []int) {
	if len(iRow) < len(m.pairs) || len(jCol) < len(m.pairs) {
		panic("hessian: structure storage shorter than map")
	}
	for k, p := range m.pairs {
		iRow[k], jCol[k] = int(p.Row), int(p.Col)
	}
}
