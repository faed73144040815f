// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/modes.go
// Summary: ANSI and DEC private mode handling, including the alternate screen.
// Notes: Alternate screen convention: 47 only switches; 1047 also clears the
//        alternate screen on leave; 1049 saves the cursor and clears the
//        alternate screen on enter and restores the cursor on leave. The
//        primary screen is never cleared by a switch.

package parser

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func (p *Parser) setANSIModes(ps Params, on bool) {
	for _, m := range ps {
		switch m {
		case 4:
			p.modes.Insert = on
		case 20:
			p.modes.NewLine = on
		default:
			p.log.WithFields(logrus.Fields{"mode": m, "set": on}).Debug("Parser: unhandled ANSI mode")
		}
	}
}

func (p *Parser) setPrivateModes(ps Params, on bool) {
	for _, m := range ps {
		switch m {
		case 1:
			p.modes.AppCursorKeys = on
		case 6:
			p.modes.Origin = on
			p.moveOrigin(0, 0)
		case 7:
			p.modes.AutoWrap = on
			for _, s := range p.screens {
				s.SetAutoWrap(on)
			}
		case 25:
			p.modes.CursorVisible = on
		case 47:
			p.switchScreen(on, false, false)
		case 1047:
			p.switchScreen(on, false, true)
		case 1048:
			if on {
				p.saveCursor()
			} else {
				p.restoreCursor()
			}
		case 1049:
			p.switchScreen(on, true, false)
		case 2004:
			p.modes.BracketedPaste = on
		default:
			p.log.WithFields(logrus.Fields{"mode": m, "set": on}).Debug("Parser: unhandled private mode")
		}
	}
}

// switchScreen enters (on) or leaves the alternate screen. withCursor saves
// the primary cursor and clears the alternate screen on entry, restoring the
// cursor on exit. clearOnLeave blanks the alternate screen before leaving.
func (p *Parser) switchScreen(on, withCursor, clearOnLeave bool) {
	if on {
		if p.active == Alternate {
			return
		}
		if withCursor {
			p.saveCursor()
		}
		row, col := p.Screen().Cursor()
		p.setActive(Alternate)
		alt := p.Screen()
		if withCursor {
			alt.ClearRows(0, alt.Rows()-1)
			alt.SetMargin(0, alt.Rows()-1)
		}
		alt.MoveCursor(row, col)
		return
	}
	if p.active == Primary {
		return
	}
	if clearOnLeave {
		alt := p.Screen()
		alt.ClearRows(0, alt.Rows()-1)
	}
	p.setActive(Primary)
	if withCursor {
		p.restoreCursor()
	}
}

func (p *Parser) setActive(id ScreenID) {
	p.active = id
	p.Screen().MarkAllDirty()
	if p.onScreenChange != nil {
		p.onScreenChange(id)
	}
}

// privateModeState reports a DEC private mode for DECRQM: 1 set, 2 reset,
// 0 unknown.
func (p *Parser) privateModeState(m int) int {
	var on bool
	switch m {
	case 1:
		on = p.modes.AppCursorKeys
	case 6:
		on = p.modes.Origin
	case 7:
		on = p.modes.AutoWrap
	case 25:
		on = p.modes.CursorVisible
	case 47, 1047, 1049:
		on = p.active == Alternate
	case 2004:
		on = p.modes.BracketedPaste
	default:
		return 0
	}
	if on {
		return 1
	}
	return 2
}

func (p *Parser) reportPrivateMode(ps Params) {
	m := ps.Selector(0)
	p.reply(fmt.Sprintf("\x1b[?%d;%d$y", m, p.privateModeState(m)))
}
