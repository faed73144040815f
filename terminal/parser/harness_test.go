package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/framegrace/vtengine/terminal/screen"
)

// testHarness wires a parser to two buffers and records everything the
// parser reports through its handlers.
type testHarness struct {
	t         *testing.T
	p         *Parser
	responses []string
	titles    []string
	bells     int
	clipboard []string
	dcs       []DeviceControl
	dirs      []string
	switches  []ScreenID
}

func newTestHarness(t *testing.T, rows, cols int, opts ...Option) *testHarness {
	t.Helper()
	h := &testHarness{t: t}
	base := []Option{
		WithResponder(func(b []byte) { h.responses = append(h.responses, string(b)) }),
		WithTitleHandler(func(s string) { h.titles = append(h.titles, s) }),
		WithBellHandler(func() { h.bells++ }),
		WithClipboardHandler(func(sel string, data []byte) {
			h.clipboard = append(h.clipboard, sel+"="+string(data))
		}),
		WithDeviceControlHandler(func(dc DeviceControl) { h.dcs = append(h.dcs, dc) }),
		WithWorkingDirHandler(func(dir string) { h.dirs = append(h.dirs, dir) }),
		WithScreenChangeHandler(func(id ScreenID) { h.switches = append(h.switches, id) }),
	}
	h.p = New(screen.New(rows, cols), screen.New(rows, cols), append(base, opts...)...)
	return h
}

// send feeds s in one call.
func (h *testHarness) send(s string) { h.p.Feed([]byte(s)) }

// sendBytewise feeds s one byte per call.
func (h *testHarness) sendBytewise(s string) {
	for i := 0; i < len(s); i++ {
		h.p.Feed([]byte{s[i]})
	}
}

func (h *testHarness) line(row int) string {
	v, ok := h.p.Screen().Row(row)
	if !ok {
		h.t.Fatalf("row %d out of range", row)
	}
	return strings.TrimRight(v.String(), " ")
}

func (h *testHarness) cell(row, col int) screen.Cell {
	c, ok := h.p.Screen().Cell(row, col)
	if !ok {
		h.t.Fatalf("cell (%d,%d) out of range", row, col)
	}
	return c
}

func (h *testHarness) assertLine(row int, want string) {
	h.t.Helper()
	if got := h.line(row); got != want {
		h.t.Errorf("line %d: got %q, want %q", row, got, want)
	}
}

func (h *testHarness) assertCursor(row, col int) {
	h.t.Helper()
	r, c := h.p.Screen().Cursor()
	if r != row || c != col {
		h.t.Errorf("cursor: got (%d,%d), want (%d,%d)", r, c, row, col)
	}
}

func (h *testHarness) assertResponses(want ...string) {
	h.t.Helper()
	if strings.Join(h.responses, "|") != strings.Join(want, "|") {
		h.t.Errorf("responses: got %q, want %q", h.responses, want)
	}
}

// snapshot renders the whole observable parser state, excluding dirty
// flags, so two parsers can be compared for equality.
func snapshot(p *Parser) string {
	var sb strings.Builder
	for id, s := range p.screens {
		row, col := s.Cursor()
		top, bottom := s.Margins()
		fmt.Fprintf(&sb, "screen %d cursor=%d,%d wrap=%v margins=%d,%d autowrap=%v\n",
			id, row, col, s.WrapPending(), top, bottom, s.AutoWrap())
		for y := 0; y < s.Rows(); y++ {
			for x := 0; x < s.Cols(); x++ {
				c, _ := s.Cell(y, x)
				fmt.Fprintf(&sb, "%q%v%+v ", c.Rune, c.Combining, c.Attrs)
			}
			sb.WriteByte('\n')
		}
	}
	fmt.Fprintf(&sb, "state=%v active=%v pen=%+v modes=%+v title=%q icon=%q gl=%d charsets=%v saved=%+v\n",
		p.state, p.active, p.pen, p.modes, p.title, p.iconName, p.gl, p.charsets, p.saved)
	return sb.String()
}
