// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/screen/row.go
// Summary: Bounds-checked read view over one buffer row.

package screen

import "strings"

// RowView is a read-only window onto one row of a Buffer. It aliases the
// buffer's storage, so it reflects later writes to that row, and its
// capacity is capped at the row end so it can never reach a neighbour.
// A view is invalidated by Buffer.Resize.
type RowView struct {
	cells []Cell
}

// Len returns the number of cells in the row.
func (v RowView) Len() int { return len(v.cells) }

// At returns the cell at col. ok is false when col is out of range.
func (v RowView) At(col int) (Cell, bool) {
	if col < 0 || col >= len(v.cells) {
		return Cell{}, false
	}
	return v.cells[col], true
}

// Cells returns a copy of the row's cells.
func (v RowView) Cells() []Cell {
	out := make([]Cell, len(v.cells))
	copy(out, v.cells)
	return out
}

// String returns the row's text, one cell per position.
func (v RowView) String() string {
	var sb strings.Builder
	sb.Grow(len(v.cells))
	for _, c := range v.cells {
		sb.WriteString(c.String())
	}
	return sb.String()
}
