package screen

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func rowText(t *testing.T, b *Buffer, row int) string {
	t.Helper()
	v, ok := b.Row(row)
	if !ok {
		t.Fatalf("row %d out of range", row)
	}
	return strings.TrimRight(v.String(), " ")
}

func TestNewBufferIsBlank(t *testing.T) {
	b := New(24, 80)
	if b.Rows() != 24 || b.Cols() != 80 {
		t.Fatalf("size: got %dx%d", b.Rows(), b.Cols())
	}
	for y := 0; y < b.Rows(); y++ {
		for x := 0; x < b.Cols(); x++ {
			c, _ := b.Cell(y, x)
			if !c.IsBlank() {
				t.Fatalf("cell (%d,%d) not blank: %+v", y, x, c)
			}
		}
	}
	if top, bottom := b.Margins(); top != 0 || bottom != 23 {
		t.Errorf("margins: got [%d,%d]", top, bottom)
	}
}

func TestMoveCursorClamps(t *testing.T) {
	tests := []struct {
		row, col         int
		wantRow, wantCol int
	}{
		{5, 5, 5, 5},
		{-1, -10, 0, 0},
		{100, 200, 23, 79},
		{23, 79, 23, 79},
	}
	b := New(24, 80)
	for _, tt := range tests {
		b.MoveCursor(tt.row, tt.col)
		if r, c := b.Cursor(); r != tt.wantRow || c != tt.wantCol {
			t.Errorf("MoveCursor(%d,%d): got (%d,%d), want (%d,%d)", tt.row, tt.col, r, c, tt.wantRow, tt.wantCol)
		}
	}
}

func TestWriteTextAndLineFeed(t *testing.T) {
	b := New(24, 80)
	b.WriteText("Hello", DefaultAttributes)
	b.CarriageReturn()
	b.LineFeed(true)
	if r, c := b.Cursor(); r != 1 || c != 0 {
		t.Errorf("cursor: got (%d,%d), want (1,0)", r, c)
	}
	v, _ := b.Row(0)
	want := "Hello" + strings.Repeat(" ", 75)
	if v.String() != want {
		t.Errorf("row 0: got %q", v.String())
	}
}

func TestPendingWrap(t *testing.T) {
	b := New(3, 5)
	b.WriteText("abcde", DefaultAttributes)
	if r, c := b.Cursor(); r != 0 || c != 4 {
		t.Fatalf("cursor after full row: got (%d,%d), want (0,4)", r, c)
	}
	if !b.WrapPending() {
		t.Fatal("expected pending wrap")
	}
	b.WriteGlyph('f', DefaultAttributes)
	if got := rowText(t, b, 1); got != "f" {
		t.Errorf("row 1: got %q, want %q", got, "f")
	}
	if r, c := b.Cursor(); r != 1 || c != 1 {
		t.Errorf("cursor: got (%d,%d), want (1,1)", r, c)
	}
}

func TestAutoWrapDisabledOverwritesLastColumn(t *testing.T) {
	b := New(2, 3)
	b.SetAutoWrap(false)
	b.WriteText("abcd", DefaultAttributes)
	if got := rowText(t, b, 0); got != "abd" {
		t.Errorf("row 0: got %q, want %q", got, "abd")
	}
	if got := rowText(t, b, 1); got != "" {
		t.Errorf("row 1 should be empty, got %q", got)
	}
}

func TestWrapOnBottomMarginScrolls(t *testing.T) {
	b := New(2, 3)
	b.WriteText("abcdefg", DefaultAttributes)
	if got := rowText(t, b, 0); got != "def" {
		t.Errorf("row 0: got %q, want %q", got, "def")
	}
	if got := rowText(t, b, 1); got != "g" {
		t.Errorf("row 1: got %q, want %q", got, "g")
	}
}

func TestLineFeedWithoutScrollStays(t *testing.T) {
	b := New(3, 4)
	b.WriteText("x", DefaultAttributes)
	b.MoveCursor(2, 0)
	b.LineFeed(false)
	if r, _ := b.Cursor(); r != 2 {
		t.Errorf("cursor row: got %d, want 2", r)
	}
	if got := rowText(t, b, 0); got != "x" {
		t.Errorf("content should not scroll, row 0 = %q", got)
	}
}

func TestScrollRegionFullHeight(t *testing.T) {
	rows := 5
	b := New(rows, 10)
	for i := 0; i <= rows; i++ {
		b.WriteText(fmt.Sprintf("line%d", i), DefaultAttributes)
		b.CarriageReturn()
		b.LineFeed(true)
	}
	// rows+1 lines each followed by a line feed: the last rows-1 lines remain,
	// followed by the fresh blank row the cursor sits on.
	for y := 0; y < rows-1; y++ {
		want := fmt.Sprintf("line%d", y+2)
		if got := rowText(t, b, y); got != want {
			t.Errorf("row %d: got %q, want %q", y, got, want)
		}
	}
	if got := rowText(t, b, rows-1); got != "" {
		t.Errorf("bottom row should be blank, got %q", got)
	}
}

func TestScrollWithinMargins(t *testing.T) {
	b := New(5, 3)
	for y := 0; y < 5; y++ {
		b.MoveCursor(y, 0)
		b.WriteGlyph(rune('a'+y), DefaultAttributes)
	}
	b.SetMargin(1, 3)
	b.ResetDirty()
	b.ScrollUp(1)
	want := []string{"a", "c", "d", "", "e"}
	for y, w := range want {
		if got := rowText(t, b, y); got != w {
			t.Errorf("after ScrollUp row %d: got %q, want %q", y, got, w)
		}
	}
	dirty := b.DirtyRows()
	if len(dirty) != 3 {
		t.Errorf("dirty rows: got %v, want rows 1..3", dirty)
	}
	b.ScrollDown(2)
	want = []string{"a", "", "", "c", "e"}
	for y, w := range want {
		if got := rowText(t, b, y); got != w {
			t.Errorf("after ScrollDown row %d: got %q, want %q", y, got, w)
		}
	}
}

func TestScrollFullRegionClears(t *testing.T) {
	b := New(4, 2)
	for y := 0; y < 4; y++ {
		b.MoveCursor(y, 0)
		b.WriteGlyph('x', DefaultAttributes)
	}
	b.SetMargin(1, 2)
	b.ScrollUp(10)
	want := []string{"x", "", "", "x"}
	for y, w := range want {
		if got := rowText(t, b, y); got != w {
			t.Errorf("row %d: got %q, want %q", y, got, w)
		}
	}
}

func TestSetMarginNormalizes(t *testing.T) {
	b := New(10, 10)
	b.SetMargin(7, 3)
	if top, bottom := b.Margins(); top != 0 || bottom != 9 {
		t.Errorf("inverted range: got [%d,%d], want [0,9]", top, bottom)
	}
	b.SetMargin(-5, 50)
	if top, bottom := b.Margins(); top != 0 || bottom != 9 {
		t.Errorf("out of range: got [%d,%d], want [0,9]", top, bottom)
	}
	b.SetMargin(2, 2)
	if top, bottom := b.Margins(); top != 2 || bottom != 2 {
		t.Errorf("single row: got [%d,%d], want [2,2]", top, bottom)
	}
}

func TestClearVariants(t *testing.T) {
	fill := func() *Buffer {
		b := New(2, 5)
		b.WriteText("abcdefghij", DefaultAttributes)
		b.MoveCursor(0, 2)
		return b
	}

	b := fill()
	b.ClearFromCursor()
	if got := rowText(t, b, 0); got != "ab" {
		t.Errorf("ClearFromCursor: got %q", got)
	}

	b = fill()
	b.ClearToCursor()
	if got := rowText(t, b, 0); got != "   de" {
		t.Errorf("ClearToCursor: got %q", got)
	}

	b = fill()
	b.ClearRow(1)
	if got := rowText(t, b, 1); got != "" {
		t.Errorf("ClearRow: got %q", got)
	}

	b = fill()
	b.Clear()
	if r, c := b.Cursor(); r != 0 || c != 0 {
		t.Errorf("Clear cursor: got (%d,%d)", r, c)
	}
	if b.Text() != "\n" {
		t.Errorf("Clear content: got %q", b.Text())
	}
}

func TestInsertDeleteChars(t *testing.T) {
	b := New(1, 6)
	b.WriteText("abcdef", DefaultAttributes)
	b.MoveCursor(0, 1)
	b.InsertBlanks(2)
	if got := rowText(t, b, 0); got != "a  bcd" {
		t.Errorf("InsertBlanks: got %q", got)
	}
	b.DeleteChars(3)
	if got := rowText(t, b, 0); got != "acd" {
		t.Errorf("DeleteChars: got %q", got)
	}
	b.MoveCursor(0, 0)
	b.EraseChars(2)
	if got := rowText(t, b, 0); got != "  d" {
		t.Errorf("EraseChars: got %q", got)
	}
}

func TestInsertDeleteLines(t *testing.T) {
	b := New(4, 2)
	for y := 0; y < 4; y++ {
		b.MoveCursor(y, 0)
		b.WriteGlyph(rune('a'+y), DefaultAttributes)
	}
	b.MoveCursor(1, 1)
	b.InsertLines(1)
	want := []string{"a", "", "b", "c"}
	for y, w := range want {
		if got := rowText(t, b, y); got != w {
			t.Errorf("InsertLines row %d: got %q, want %q", y, got, w)
		}
	}
	if _, c := b.Cursor(); c != 0 {
		t.Errorf("InsertLines should home column, got %d", c)
	}
	b.DeleteLines(2)
	want = []string{"a", "c", "", ""}
	for y, w := range want {
		if got := rowText(t, b, y); got != w {
			t.Errorf("DeleteLines row %d: got %q, want %q", y, got, w)
		}
	}
}

func TestTabStops(t *testing.T) {
	b := New(1, 30)
	b.Tab(1)
	if _, c := b.Cursor(); c != 8 {
		t.Errorf("first tab: got col %d, want 8", c)
	}
	b.Tab(2)
	if _, c := b.Cursor(); c != 24 {
		t.Errorf("two tabs: got col %d, want 24", c)
	}
	b.Tab(1)
	if _, c := b.Cursor(); c != 29 {
		t.Errorf("tab past last stop: got col %d, want 29", c)
	}
	b.TabBackward(1)
	if _, c := b.Cursor(); c != 24 {
		t.Errorf("back tab: got col %d, want 24", c)
	}
	b.MoveCursor(0, 3)
	b.SetTabStop()
	b.MoveCursor(0, 0)
	b.Tab(1)
	if _, c := b.Cursor(); c != 3 {
		t.Errorf("custom stop: got col %d, want 3", c)
	}
}

func TestCombiningMarksAttach(t *testing.T) {
	b := New(1, 5)
	b.WriteText("e\u0301x", DefaultAttributes)
	c, _ := b.Cell(0, 0)
	if len(c.Glyphs()) != 2 {
		t.Fatalf("glyphs: got %v", c.Glyphs())
	}
	if c.String() != "\u00e9" {
		t.Errorf("NFC string: got %q", c.String())
	}
	if x, _ := b.Cell(0, 1); x.Rune != 'x' {
		t.Errorf("next cell: got %q", x.Rune)
	}
	if _, col := b.Cursor(); col != 2 {
		t.Errorf("combining mark must not advance, col=%d", col)
	}
}

func TestCombiningCopyDoesNotAlias(t *testing.T) {
	b := New(1, 3)
	b.WriteText("a\u0301", DefaultAttributes)
	before, _ := b.Cell(0, 0)
	b.WriteGlyph('\u0302', DefaultAttributes)
	if len(before.Combining) != 1 {
		t.Errorf("earlier copy changed: %v", before.Combining)
	}
}

func TestDirtyTracking(t *testing.T) {
	b := New(4, 4)
	b.ResetDirty()
	if len(b.DirtyRows()) != 0 {
		t.Fatalf("dirty after reset: %v", b.DirtyRows())
	}
	b.WriteText("ab", DefaultAttributes)
	b.MoveCursor(2, 0)
	b.WriteText("cd", DefaultAttributes)
	b.MoveCursor(0, 3)
	b.WriteGlyph('z', DefaultAttributes)

	dirty := b.DirtyRows()
	if len(dirty) != 2 || dirty[0] != 0 || dirty[1] != 2 {
		t.Errorf("dirty rows: got %v, want [0 2]", dirty)
	}
	c, _ := b.Cell(0, 0)
	if !c.Dirty {
		t.Error("written cell should be dirty")
	}

	b.ResetDirty()
	if len(b.DirtyRows()) != 0 {
		t.Errorf("dirty rows after reset: %v", b.DirtyRows())
	}
	for y := 0; y < b.Rows(); y++ {
		if b.IsRowDirty(y) {
			t.Errorf("row %d still dirty", y)
		}
		v, _ := b.Row(y)
		for x, cell := range v.Cells() {
			if cell.Dirty {
				t.Errorf("cell (%d,%d) still dirty", y, x)
			}
		}
	}
}

func TestRowViewBounds(t *testing.T) {
	b := New(3, 4)
	if _, ok := b.Row(-1); ok {
		t.Error("Row(-1) should fail")
	}
	if _, ok := b.Row(3); ok {
		t.Error("Row(3) should fail")
	}
	v, ok := b.Row(1)
	if !ok {
		t.Fatal("Row(1) should succeed")
	}
	if v.Len() != 4 {
		t.Errorf("Len: got %d", v.Len())
	}
	if _, ok := v.At(4); ok {
		t.Error("At(4) should fail")
	}
	if cap(v.cells) != 4 {
		t.Errorf("view capacity leaks past the row: %d", cap(v.cells))
	}
	b.MoveCursor(1, 2)
	b.WriteGlyph('q', DefaultAttributes)
	if c, _ := v.At(2); c.Rune != 'q' {
		t.Errorf("view should observe writes, got %q", c.Rune)
	}
}

func TestResizeKeepsContent(t *testing.T) {
	b := New(3, 5)
	b.WriteText("hello", DefaultAttributes)
	b.MoveCursor(2, 4)
	b.Resize(2, 3)
	if got := rowText(t, b, 0); got != "hel" {
		t.Errorf("row 0: got %q", got)
	}
	if r, c := b.Cursor(); r != 1 || c != 2 {
		t.Errorf("cursor: got (%d,%d)", r, c)
	}
	b.Resize(4, 8)
	if got := rowText(t, b, 0); got != "hel" {
		t.Errorf("row 0 after grow: got %q", got)
	}
}

func TestFill(t *testing.T) {
	b := New(2, 3)
	b.SetMargin(1, 1)
	b.Fill('E')
	if b.Text() != "EEE\nEEE" {
		t.Errorf("Fill: got %q", b.Text())
	}
	if top, bottom := b.Margins(); top != 0 || bottom != 1 {
		t.Errorf("margins after fill: [%d,%d]", top, bottom)
	}
}

func TestCursorStaysInBoundsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := New(7, 11)
	ops := []func(){
		func() { b.MoveCursor(rng.Intn(40)-20, rng.Intn(40)-20) },
		func() { b.WriteGlyph(rune('a'+rng.Intn(26)), DefaultAttributes) },
		func() { b.LineFeed(rng.Intn(2) == 0) },
		func() { b.CarriageReturn() },
		func() { b.ReverseIndex() },
		func() { b.SetMargin(rng.Intn(10)-2, rng.Intn(10)-2) },
		func() { b.ScrollUp(rng.Intn(10)) },
		func() { b.ScrollDown(rng.Intn(10)) },
		func() { b.InsertLines(rng.Intn(5)) },
		func() { b.DeleteLines(rng.Intn(5)) },
		func() { b.InsertBlanks(rng.Intn(15)) },
		func() { b.DeleteChars(rng.Intn(15)) },
		func() { b.Tab(rng.Intn(3)) },
		func() { b.TabBackward(rng.Intn(3)) },
		func() { b.Backspace() },
		func() { b.SetAutoWrap(rng.Intn(2) == 0) },
	}
	for i := 0; i < 5000; i++ {
		ops[rng.Intn(len(ops))]()
		r, c := b.Cursor()
		if r < 0 || r >= b.Rows() || c < 0 || c >= b.Cols() {
			t.Fatalf("step %d: cursor out of bounds (%d,%d)", i, r, c)
		}
		top, bottom := b.Margins()
		if top < 0 || top > bottom || bottom >= b.Rows() {
			t.Fatalf("step %d: bad margins [%d,%d]", i, top, bottom)
		}
	}
}

func TestAttributeString(t *testing.T) {
	if got := (AttrBold | AttrInverse).String(); got != "bold|inverse" {
		t.Errorf("got %q", got)
	}
	if got := Attribute(0).String(); got != "none" {
		t.Errorf("got %q", got)
	}
}
