// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/control.go
// Summary: C0 controls, two-character escapes and cursor save/restore.

package parser

import (
	"github.com/sirupsen/logrus"

	"github.com/framegrace/vtengine/terminal/screen"
)

func (p *Parser) execute(b byte) {
	s := p.Screen()
	switch b {
	case 0x07:
		if p.onBell != nil {
			p.onBell()
		}
	case 0x08:
		s.Backspace()
	case 0x09:
		s.Tab(1)
	case 0x0a, 0x0b, 0x0c:
		s.LineFeed(true)
		if p.modes.NewLine {
			s.CarriageReturn()
		}
	case 0x0d:
		s.CarriageReturn()
	case 0x0e:
		p.gl = 1
	case 0x0f:
		p.gl = 0
	}
}

func (p *Parser) escDispatch(b byte) {
	if p.openString != stringNone {
		kind := p.openString
		p.openString = stringNone
		if b == '\\' && len(p.intermediates) == 0 {
			p.finishString(kind)
			return
		}
		p.discardString(kind)
	}

	if len(p.intermediates) > 0 {
		p.escIntermediate(p.intermediates[0], b)
		return
	}

	s := p.Screen()
	switch b {
	case '7':
		p.saveCursor()
	case '8':
		p.restoreCursor()
	case 'D':
		s.LineFeed(true)
	case 'E':
		s.LineFeed(true)
		s.CarriageReturn()
	case 'M':
		s.ReverseIndex()
	case 'H':
		s.SetTabStop()
	case 'c':
		p.Reset()
	case '=':
		p.modes.AppKeypad = true
	case '>':
		p.modes.AppKeypad = false
	case 'Z':
		p.reply(primaryDeviceAttributes)
	case '\\':
		// ST with no open string.
	default:
		p.log.WithField("final", string(rune(b))).Debug("Parser: unhandled ESC sequence")
	}
}

func (p *Parser) escIntermediate(inter, b byte) {
	switch inter {
	case '#':
		if b == '8' {
			p.Screen().Fill('E')
			return
		}
	case '(', ')':
		g := 0
		if inter == ')' {
			g = 1
		}
		switch b {
		case '0':
			p.charsets[g] = charsetDECGraphics
		default:
			p.charsets[g] = charsetASCII
		}
		return
	}
	p.log.WithFields(logrus.Fields{
		"intermediate": string(rune(inter)),
		"final":        string(rune(b)),
	}).Debug("Parser: unhandled ESC sequence")
}

func (p *Parser) finishString(kind stringKind) {
	switch kind {
	case stringOSC:
		p.oscDispatch()
	case stringDCS:
		p.unhook()
	}
}

func (p *Parser) discardString(kind stringKind) {
	switch kind {
	case stringOSC:
		p.osc = p.osc[:0]
		p.oscPending = 0
	case stringDCS:
		p.resetDCS()
	}
}

// discardOpenString drops a string that ESC interrupted when the escape
// turns out not to be ST.
func (p *Parser) discardOpenString() {
	p.discardString(p.openString)
	p.openString = stringNone
}

// stringST handles a raw 0x9C inside OSC or DCS payload. It terminates the
// string only between characters; inside a UTF-8 sequence it is a
// continuation byte.
func (p *Parser) stringST(b byte) {
	switch p.state {
	case StateOscString:
		if p.oscPending > 0 {
			p.oscPut(b)
			return
		}
		p.state = StateGround
		p.oscDispatch()
	case StateDcsPassthrough:
		if p.dcsPending > 0 {
			p.dcsPut(b)
			return
		}
		p.state = StateGround
		p.unhook()
	}
}

// utf8Pending returns how many continuation bytes are still expected after
// b, given the count expected before it.
func utf8Pending(pending int, b byte) int {
	switch {
	case b < 0x80:
		return 0
	case b < 0xc0:
		if pending > 0 {
			return pending - 1
		}
		return 0
	case b < 0xe0:
		return 1
	case b < 0xf0:
		return 2
	case b < 0xf8:
		return 3
	}
	return 0
}

func (p *Parser) saveCursor() {
	row, col := p.Screen().Cursor()
	p.saved[p.active] = savedCursor{
		valid:    true,
		row:      row,
		col:      col,
		pen:      p.pen,
		origin:   p.modes.Origin,
		charsets: p.charsets,
		gl:       p.gl,
	}
}

func (p *Parser) restoreCursor() {
	sc := p.saved[p.active]
	if !sc.valid {
		p.Screen().MoveCursor(0, 0)
		p.pen = screen.DefaultAttributes
		p.modes.Origin = false
		return
	}
	p.Screen().MoveCursor(sc.row, sc.col)
	p.pen = sc.pen
	p.modes.Origin = sc.origin
	p.charsets = sc.charsets
	p.gl = sc.gl
}
