// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/csi.go
// Summary: CSI dispatch table and cursor/erase/edit handlers.
// Notes: Handlers are keyed by (private prefix, intermediate, final byte).

package parser

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/framegrace/vtengine/terminal/screen"
)

// Params is a CSI parameter list. Absent parameters read as zero.
type Params []int

// Count returns parameter i for count-style use: absent or zero means def.
func (ps Params) Count(i, def int) int {
	if i < len(ps) && ps[i] != 0 {
		return ps[i]
	}
	return def
}

// Selector returns parameter i as given, zero when absent.
func (ps Params) Selector(i int) int {
	if i < len(ps) {
		return ps[i]
	}
	return 0
}

type csiKey struct {
	prefix byte
	inter  byte
	final  byte
}

type csiHandler func(p *Parser, ps Params)

var csiHandlers map[csiKey]csiHandler

func init() {
	csiHandlers = map[csiKey]csiHandler{
		{0, 0, 'A'}: (*Parser).cursorUp,
		{0, 0, 'B'}: (*Parser).cursorDown,
		{0, 0, 'e'}: (*Parser).cursorDown,
		{0, 0, 'C'}: (*Parser).cursorForward,
		{0, 0, 'a'}: (*Parser).cursorForward,
		{0, 0, 'D'}: (*Parser).cursorBack,
		{0, 0, 'E'}: (*Parser).cursorNextLine,
		{0, 0, 'F'}: (*Parser).cursorPrevLine,
		{0, 0, 'G'}: (*Parser).cursorColumn,
		{0, 0, '`'}: (*Parser).cursorColumn,
		{0, 0, 'H'}: (*Parser).cursorPosition,
		{0, 0, 'f'}: (*Parser).cursorPosition,
		{0, 0, 'd'}: (*Parser).cursorRow,
		{0, 0, 'I'}: func(p *Parser, ps Params) { p.Screen().Tab(ps.Count(0, 1)) },
		{0, 0, 'Z'}: func(p *Parser, ps Params) { p.Screen().TabBackward(ps.Count(0, 1)) },
		{0, 0, 'J'}: (*Parser).eraseDisplay,
		{0, 0, 'K'}: (*Parser).eraseLine,
		{0, 0, 'L'}: func(p *Parser, ps Params) { p.Screen().InsertLines(ps.Count(0, 1)) },
		{0, 0, 'M'}: func(p *Parser, ps Params) { p.Screen().DeleteLines(ps.Count(0, 1)) },
		{0, 0, '@'}: func(p *Parser, ps Params) { p.Screen().InsertBlanks(ps.Count(0, 1)) },
		{0, 0, 'P'}: func(p *Parser, ps Params) { p.Screen().DeleteChars(ps.Count(0, 1)) },
		{0, 0, 'X'}: func(p *Parser, ps Params) { p.Screen().EraseChars(ps.Count(0, 1)) },
		{0, 0, 'S'}: func(p *Parser, ps Params) { p.Screen().ScrollUp(ps.Count(0, 1)) },
		{0, 0, 'T'}: func(p *Parser, ps Params) { p.Screen().ScrollDown(ps.Count(0, 1)) },
		{0, 0, 'b'}: (*Parser).repeat,
		{0, 0, 'r'}: (*Parser).setMargins,
		{0, 0, 's'}: func(p *Parser, _ Params) { p.saveCursor() },
		{0, 0, 'u'}: func(p *Parser, _ Params) { p.restoreCursor() },
		{0, 0, 'g'}: (*Parser).tabClear,
		{0, 0, 'm'}: (*Parser).selectGraphicRendition,
		{0, 0, 'h'}: func(p *Parser, ps Params) { p.setANSIModes(ps, true) },
		{0, 0, 'l'}: func(p *Parser, ps Params) { p.setANSIModes(ps, false) },
		{0, 0, 'n'}: (*Parser).deviceStatus,
		{0, 0, 'c'}: (*Parser).deviceAttributes,

		{'?', 0, 'h'}: func(p *Parser, ps Params) { p.setPrivateModes(ps, true) },
		{'?', 0, 'l'}: func(p *Parser, ps Params) { p.setPrivateModes(ps, false) },
		{'>', 0, 'c'}: func(p *Parser, _ Params) { p.reply(secondaryDeviceAttributes) },
		{0, '!', 'p'}: func(p *Parser, _ Params) { p.softReset() },

		{'?', '$', 'p'}: (*Parser).reportPrivateMode,
	}
}

const (
	primaryDeviceAttributes   = "\x1b[?62;22c"
	secondaryDeviceAttributes = "\x1b[>1;100;0c"
)

func (p *Parser) csiDispatch(final byte) {
	ps := Params(p.params)
	if p.malformed || len(p.intermediates) > 1 {
		p.log.WithFields(logrus.Fields{
			"final":  string(rune(final)),
			"params": []int(ps),
		}).Debug("Parser: dropped malformed CSI sequence")
		return
	}
	key := csiKey{prefix: p.prefix, final: final}
	if len(p.intermediates) == 1 {
		key.inter = p.intermediates[0]
	}
	h, ok := csiHandlers[key]
	if !ok {
		p.log.WithFields(logrus.Fields{
			"prefix": string(rune(key.prefix)),
			"inter":  string(rune(key.inter)),
			"final":  string(rune(final)),
			"params": []int(ps),
		}).Debug("Parser: unhandled CSI sequence")
		return
	}
	h(p, ps)
}

// verticalBounds returns the rows the cursor may move within: the scroll
// region when the cursor is inside it, otherwise the whole screen.
func (p *Parser) verticalBounds(row int) (top, bottom int) {
	s := p.Screen()
	top, bottom = s.Margins()
	if row < top || row > bottom {
		return 0, s.Rows() - 1
	}
	return top, bottom
}

func (p *Parser) cursorUp(ps Params) {
	s := p.Screen()
	row, col := s.Cursor()
	top, _ := p.verticalBounds(row)
	s.MoveCursor(max(row-ps.Count(0, 1), top), col)
}

func (p *Parser) cursorDown(ps Params) {
	s := p.Screen()
	row, col := s.Cursor()
	_, bottom := p.verticalBounds(row)
	s.MoveCursor(min(row+ps.Count(0, 1), bottom), col)
}

func (p *Parser) cursorForward(ps Params) {
	s := p.Screen()
	row, col := s.Cursor()
	s.MoveCursor(row, col+ps.Count(0, 1))
}

func (p *Parser) cursorBack(ps Params) {
	s := p.Screen()
	row, col := s.Cursor()
	s.MoveCursor(row, col-ps.Count(0, 1))
}

func (p *Parser) cursorNextLine(ps Params) {
	p.cursorDown(ps)
	p.Screen().CarriageReturn()
}

func (p *Parser) cursorPrevLine(ps Params) {
	p.cursorUp(ps)
	p.Screen().CarriageReturn()
}

func (p *Parser) cursorColumn(ps Params) {
	s := p.Screen()
	row, _ := s.Cursor()
	s.MoveCursor(row, ps.Count(0, 1)-1)
}

// moveOrigin positions the cursor honouring origin mode.
func (p *Parser) moveOrigin(row, col int) {
	s := p.Screen()
	if p.modes.Origin {
		top, bottom := s.Margins()
		s.MoveCursor(min(top+row, bottom), col)
		return
	}
	s.MoveCursor(row, col)
}

func (p *Parser) cursorPosition(ps Params) {
	p.moveOrigin(ps.Count(0, 1)-1, ps.Count(1, 1)-1)
}

func (p *Parser) cursorRow(ps Params) {
	_, col := p.Screen().Cursor()
	p.moveOrigin(ps.Count(0, 1)-1, col)
}

func (p *Parser) eraseDisplay(ps Params) {
	s := p.Screen()
	row, _ := s.Cursor()
	switch ps.Selector(0) {
	case 0:
		s.ClearFromCursor()
		if row+1 < s.Rows() {
			s.ClearRows(row+1, s.Rows()-1)
		}
	case 1:
		if row > 0 {
			s.ClearRows(0, row-1)
		}
		s.ClearToCursor()
	case 2, 3:
		s.ClearRows(0, s.Rows()-1)
	}
}

func (p *Parser) eraseLine(ps Params) {
	s := p.Screen()
	switch ps.Selector(0) {
	case 0:
		s.ClearFromCursor()
	case 1:
		s.ClearToCursor()
	case 2:
		row, _ := s.Cursor()
		s.ClearRow(row)
	}
}

func (p *Parser) repeat(ps Params) {
	if p.lastPrinted == 0 {
		return
	}
	r := p.lastPrinted
	for n := min(ps.Count(0, 1), p.Screen().Rows()*p.Screen().Cols()); n > 0; n-- {
		p.emit(r)
	}
}

func (p *Parser) setMargins(ps Params) {
	s := p.Screen()
	s.SetMargin(ps.Count(0, 1)-1, ps.Count(1, s.Rows())-1)
	p.moveOrigin(0, 0)
}

func (p *Parser) tabClear(ps Params) {
	switch ps.Selector(0) {
	case 0:
		p.Screen().ClearTabStop()
	case 3:
		p.Screen().ClearAllTabStops()
	}
}

func (p *Parser) deviceStatus(ps Params) {
	switch ps.Selector(0) {
	case 5:
		p.reply("\x1b[0n")
	case 6:
		s := p.Screen()
		row, col := s.Cursor()
		if p.modes.Origin {
			top, _ := s.Margins()
			row -= top
		}
		p.reply(fmt.Sprintf("\x1b[%d;%dR", row+1, col+1))
	}
}

func (p *Parser) deviceAttributes(ps Params) {
	if ps.Selector(0) == 0 {
		p.reply(primaryDeviceAttributes)
	}
}

// softReset implements DECSTR.
func (p *Parser) softReset() {
	p.modes.Insert = false
	p.modes.Origin = false
	p.modes.AutoWrap = true
	p.modes.CursorVisible = true
	p.modes.AppCursorKeys = false
	p.modes.AppKeypad = false
	for _, b := range p.screens {
		b.SetAutoWrap(true)
		b.SetMargin(0, b.Rows()-1)
	}
	p.pen = screen.DefaultAttributes
	p.charsets = [2]charset{}
	p.gl = 0
	p.saved[p.active] = savedCursor{valid: true, pen: p.pen}
}
