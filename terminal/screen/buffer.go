// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/screen/buffer.go
// Summary: Row-major cell grid with cursor, scroll margins and dirty rows.
// Usage: Owned by the emulator; mutated by the parser for the active screen.
// Notes: Not safe for concurrent use; callers stay on the I/O loop goroutine.

package screen

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const tabWidth = 8

// Buffer is a fixed-size grid of cells. The zero value is not usable; use New.
type Buffer struct {
	rows, cols int
	cells      []Cell

	row, col    int
	wrapPending bool
	autoWrap    bool

	top, bottom int
	tabStops    []bool

	dirty    []int
	dirtyRow []bool
}

// New creates a blank buffer. Sizes below 1 are raised to 1.
func New(rows, cols int) *Buffer {
	b := &Buffer{}
	b.allocate(rows, cols)
	b.Reset()
	return b
}

func (b *Buffer) allocate(rows, cols int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	b.rows, b.cols = rows, cols
	b.cells = make([]Cell, rows*cols)
	b.tabStops = make([]bool, cols)
	b.dirtyRow = make([]bool, rows)
	b.dirty = make([]int, 0, rows)
}

// Reset blanks every cell, homes the cursor and restores margins,
// tab stops and autowrap to their power-on values.
func (b *Buffer) Reset() {
	for i := range b.cells {
		b.cells[i] = Blank()
	}
	b.row, b.col = 0, 0
	b.wrapPending = false
	b.autoWrap = true
	b.top, b.bottom = 0, b.rows-1
	b.resetTabStops()
	for y := 0; y < b.rows; y++ {
		b.markDirty(y)
	}
}

func (b *Buffer) resetTabStops() {
	for x := range b.tabStops {
		b.tabStops[x] = x > 0 && x%tabWidth == 0
	}
}

// Rows returns the number of rows.
func (b *Buffer) Rows() int { return b.rows }

// Cols returns the number of columns.
func (b *Buffer) Cols() int { return b.cols }

// Cursor returns the cursor position (0-based).
func (b *Buffer) Cursor() (row, col int) { return b.row, b.col }

// WrapPending reports whether the next glyph will wrap to a new line first.
func (b *Buffer) WrapPending() bool { return b.wrapPending }

// Margins returns the scroll region, inclusive and 0-based.
func (b *Buffer) Margins() (top, bottom int) { return b.top, b.bottom }

// AutoWrap reports whether glyphs written at the right edge wrap.
func (b *Buffer) AutoWrap() bool { return b.autoWrap }

// SetAutoWrap toggles autowrap (DECAWM).
func (b *Buffer) SetAutoWrap(on bool) {
	b.autoWrap = on
	if !on {
		b.wrapPending = false
	}
}

// MoveCursor moves the cursor, clamping both coordinates into bounds.
func (b *Buffer) MoveCursor(row, col int) {
	b.row = clamp(row, 0, b.rows-1)
	b.col = clamp(col, 0, b.cols-1)
	b.wrapPending = false
}

// CarriageReturn moves the cursor to column 0.
func (b *Buffer) CarriageReturn() {
	b.col = 0
	b.wrapPending = false
}

// Backspace moves the cursor one column left, stopping at column 0.
func (b *Buffer) Backspace() {
	if b.col > 0 {
		b.col--
	}
	b.wrapPending = false
}

// LineFeed advances the cursor one row. On the bottom margin row the region
// scrolls up by one when allowScroll is set; otherwise the cursor stays put.
func (b *Buffer) LineFeed(allowScroll bool) {
	b.wrapPending = false
	if b.row == b.bottom {
		if allowScroll {
			b.ScrollUp(1)
		}
		return
	}
	if b.row < b.rows-1 {
		b.row++
	}
}

// ReverseIndex moves the cursor up one row, scrolling the region down when
// the cursor is on the top margin.
func (b *Buffer) ReverseIndex() {
	b.wrapPending = false
	if b.row == b.top {
		b.ScrollDown(1)
		return
	}
	if b.row > 0 {
		b.row--
	}
}

// SetMargin sets the scroll region. Both bounds are clamped into the screen;
// a range with top > bottom falls back to the full screen.
func (b *Buffer) SetMargin(top, bottom int) {
	top = clamp(top, 0, b.rows-1)
	bottom = clamp(bottom, 0, b.rows-1)
	if top > bottom {
		top, bottom = 0, b.rows-1
	}
	b.top, b.bottom = top, bottom
}

// Clear blanks the whole buffer and homes the cursor.
func (b *Buffer) Clear() {
	b.ClearRows(0, b.rows-1)
	b.MoveCursor(0, 0)
}

// ClearRow blanks one row. Out-of-range rows are ignored.
func (b *Buffer) ClearRow(row int) {
	if row < 0 || row >= b.rows {
		return
	}
	b.blank(row, 0, b.cols)
}

// ClearRows blanks rows from..to inclusive, clamped to the screen.
func (b *Buffer) ClearRows(from, to int) {
	from = clamp(from, 0, b.rows-1)
	to = clamp(to, 0, b.rows-1)
	for y := from; y <= to; y++ {
		b.blank(y, 0, b.cols)
	}
}

// ClearFromCursor blanks the cursor row from the cursor to the right edge.
func (b *Buffer) ClearFromCursor() {
	b.blank(b.row, b.col, b.cols)
	b.wrapPending = false
}

// ClearToCursor blanks the cursor row from column 0 through the cursor.
func (b *Buffer) ClearToCursor() {
	b.blank(b.row, 0, b.col+1)
}

// EraseChars blanks n cells starting at the cursor without moving it.
func (b *Buffer) EraseChars(n int) {
	if n <= 0 {
		return
	}
	b.blank(b.row, b.col, min(b.col+n, b.cols))
	b.wrapPending = false
}

// blank resets cells [from, to) of row and marks the row dirty.
func (b *Buffer) blank(row, from, to int) {
	if from >= to {
		return
	}
	base := row * b.cols
	for x := from; x < to; x++ {
		b.cells[base+x] = Blank()
	}
	b.markDirty(row)
}

// WriteGlyph writes r at the cursor and advances it. Writing into the last
// column leaves the cursor there with a pending wrap; the next glyph first
// moves to column 0 of the next line, scrolling on the bottom margin.
// Zero-width code points attach to the previously written cell.
func (b *Buffer) WriteGlyph(r rune, attrs Attributes) {
	if r >= 0x20 && runewidth.RuneWidth(r) == 0 {
		b.attachCombining(r)
		return
	}
	if b.wrapPending {
		b.col = 0
		b.LineFeed(true)
	}
	b.cells[b.row*b.cols+b.col] = Cell{Rune: r, Attrs: attrs, Dirty: true}
	b.markDirty(b.row)

	if b.col < b.cols-1 {
		b.col++
	} else if b.autoWrap {
		b.wrapPending = true
	}
}

func (b *Buffer) attachCombining(r rune) {
	col := b.col
	if !b.wrapPending {
		if col == 0 {
			return
		}
		col--
	}
	idx := b.row*b.cols + col
	c := b.cells[idx].withCombining(r)
	c.Dirty = true
	b.cells[idx] = c
	b.markDirty(b.row)
}

// WriteText writes each code point of text in order.
func (b *Buffer) WriteText(text string, attrs Attributes) {
	for _, r := range text {
		b.WriteGlyph(r, attrs)
	}
}

// ScrollUp shifts the scroll region up by n rows, blanking rows at the
// bottom. n is clamped to the region height.
func (b *Buffer) ScrollUp(n int) { b.scrollUpIn(b.top, b.bottom, n) }

// ScrollDown shifts the scroll region down by n rows, blanking rows at the top.
func (b *Buffer) ScrollDown(n int) { b.scrollDownIn(b.top, b.bottom, n) }

func (b *Buffer) scrollUpIn(top, bottom, n int) {
	if n <= 0 || top > bottom {
		return
	}
	b.wrapPending = false
	height := bottom - top + 1
	if n >= height {
		b.ClearRows(top, bottom)
		return
	}
	copy(b.cells[top*b.cols:(bottom-n+1)*b.cols], b.cells[(top+n)*b.cols:(bottom+1)*b.cols])
	b.touchRows(top, bottom-n)
	b.ClearRows(bottom-n+1, bottom)
}

func (b *Buffer) scrollDownIn(top, bottom, n int) {
	if n <= 0 || top > bottom {
		return
	}
	b.wrapPending = false
	height := bottom - top + 1
	if n >= height {
		b.ClearRows(top, bottom)
		return
	}
	copy(b.cells[(top+n)*b.cols:(bottom+1)*b.cols], b.cells[top*b.cols:(bottom-n+1)*b.cols])
	b.touchRows(top+n, bottom)
	b.ClearRows(top, top+n-1)
}

// touchRows flags every cell of rows from..to as changed.
func (b *Buffer) touchRows(from, to int) {
	for y := from; y <= to; y++ {
		base := y * b.cols
		for x := 0; x < b.cols; x++ {
			b.cells[base+x].Dirty = true
		}
		b.markDirty(y)
	}
}

// InsertLines inserts n blank rows at the cursor row, pushing the rows below
// it down within the scroll region. No-op when the cursor is outside it.
func (b *Buffer) InsertLines(n int) {
	if b.row < b.top || b.row > b.bottom {
		return
	}
	b.scrollDownIn(b.row, b.bottom, n)
	b.col = 0
}

// DeleteLines removes n rows at the cursor row, pulling the rows below it up
// within the scroll region. No-op when the cursor is outside it.
func (b *Buffer) DeleteLines(n int) {
	if b.row < b.top || b.row > b.bottom {
		return
	}
	b.scrollUpIn(b.row, b.bottom, n)
	b.col = 0
}

// InsertBlanks shifts the cells from the cursor right by n, dropping cells
// pushed past the right edge.
func (b *Buffer) InsertBlanks(n int) {
	if n <= 0 {
		return
	}
	b.wrapPending = false
	n = min(n, b.cols-b.col)
	line := b.cells[b.row*b.cols : (b.row+1)*b.cols]
	copy(line[b.col+n:], line[b.col:])
	for x := b.col; x < b.col+n; x++ {
		line[x] = Blank()
	}
	for x := b.col + n; x < b.cols; x++ {
		line[x].Dirty = true
	}
	b.markDirty(b.row)
}

// DeleteChars removes n cells at the cursor, shifting the rest of the row
// left and blanking the freed cells at the right edge.
func (b *Buffer) DeleteChars(n int) {
	if n <= 0 {
		return
	}
	b.wrapPending = false
	n = min(n, b.cols-b.col)
	line := b.cells[b.row*b.cols : (b.row+1)*b.cols]
	copy(line[b.col:], line[b.col+n:])
	for x := b.col; x < b.cols-n; x++ {
		line[x].Dirty = true
	}
	for x := b.cols - n; x < b.cols; x++ {
		line[x] = Blank()
	}
	b.markDirty(b.row)
}

// Tab moves the cursor to the next tab stop, or the last column.
func (b *Buffer) Tab(n int) {
	for ; n > 0; n-- {
		x := b.col + 1
		for x < b.cols-1 && !b.tabStops[x] {
			x++
		}
		b.col = min(x, b.cols-1)
	}
	b.wrapPending = false
}

// TabBackward moves the cursor to the previous tab stop, or column 0.
func (b *Buffer) TabBackward(n int) {
	for ; n > 0; n-- {
		x := b.col - 1
		for x > 0 && !b.tabStops[x] {
			x--
		}
		b.col = max(x, 0)
	}
	b.wrapPending = false
}

// SetTabStop sets a tab stop at the cursor column.
func (b *Buffer) SetTabStop() { b.tabStops[b.col] = true }

// ClearTabStop removes the tab stop at the cursor column.
func (b *Buffer) ClearTabStop() { b.tabStops[b.col] = false }

// ClearAllTabStops removes every tab stop.
func (b *Buffer) ClearAllTabStops() {
	for x := range b.tabStops {
		b.tabStops[x] = false
	}
}

// Fill writes r with default attributes into every cell (DECALN), resets the
// margins and homes the cursor.
func (b *Buffer) Fill(r rune) {
	for i := range b.cells {
		b.cells[i] = Cell{Rune: r, Attrs: DefaultAttributes, Dirty: true}
	}
	for y := 0; y < b.rows; y++ {
		b.markDirty(y)
	}
	b.top, b.bottom = 0, b.rows-1
	b.MoveCursor(0, 0)
}

// Resize changes the geometry, keeping the top-left content that still fits.
// Margins reset to the full screen and the cursor is clamped.
func (b *Buffer) Resize(rows, cols int) {
	if rows == b.rows && cols == b.cols {
		return
	}
	old, oldRows, oldCols := b.cells, b.rows, b.cols
	autoWrap := b.autoWrap
	row, col := b.row, b.col
	b.allocate(rows, cols)
	b.Reset()
	b.autoWrap = autoWrap
	for y := 0; y < min(oldRows, b.rows); y++ {
		copy(b.cells[y*b.cols:y*b.cols+min(oldCols, b.cols)], old[y*oldCols:])
		b.touchRows(y, y)
	}
	b.MoveCursor(row, col)
}

// Cell returns the cell at (row, col).
func (b *Buffer) Cell(row, col int) (Cell, bool) {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return Cell{}, false
	}
	return b.cells[row*b.cols+col], true
}

// Row returns a view over one row. ok is false for out-of-range rows.
func (b *Buffer) Row(row int) (RowView, bool) {
	if row < 0 || row >= b.rows {
		return RowView{}, false
	}
	start := row * b.cols
	end := start + b.cols
	return RowView{cells: b.cells[start:end:end]}, true
}

// Lines returns every row as text, including trailing blanks.
func (b *Buffer) Lines() []string {
	out := make([]string, b.rows)
	for y := range out {
		v, _ := b.Row(y)
		out[y] = v.String()
	}
	return out
}

// Text returns the screen content with trailing blanks trimmed from each row.
func (b *Buffer) Text() string {
	lines := b.Lines()
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}

// DirtyRows returns the rows changed since the last ResetDirty, in the order
// they were first touched.
func (b *Buffer) DirtyRows() []int {
	out := make([]int, len(b.dirty))
	copy(out, b.dirty)
	return out
}

// IsRowDirty reports whether row changed since the last ResetDirty.
func (b *Buffer) IsRowDirty(row int) bool {
	return row >= 0 && row < b.rows && b.dirtyRow[row]
}

// ResetDirty clears every cell's dirty flag and empties the dirty-row set.
func (b *Buffer) ResetDirty() {
	for i := range b.cells {
		b.cells[i].Dirty = false
	}
	for _, y := range b.dirty {
		b.dirtyRow[y] = false
	}
	b.dirty = b.dirty[:0]
}

// MarkAllDirty flags every row for redraw without touching content.
func (b *Buffer) MarkAllDirty() {
	for y := 0; y < b.rows; y++ {
		b.markDirty(y)
	}
}

func (b *Buffer) markDirty(row int) {
	if b.dirtyRow[row] {
		return
	}
	b.dirtyRow[row] = true
	b.dirty = append(b.dirty, row)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
