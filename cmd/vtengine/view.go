// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/view.go
// Summary: Draws the emulator's visible screen onto a tcell screen.
// Notes: Only dirty rows are redrawn; a full redraw is forced after a host
//        resize or a screen switch.

package main

import (
	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/vtengine/terminal"
	"github.com/framegrace/vtengine/terminal/screen"
)

// view renders one emulator.
type view struct {
	host tcell.Screen
	emu  *terminal.Emulator
	full bool
}

func newView(host tcell.Screen, emu *terminal.Emulator) *view {
	return &view{host: host, emu: emu, full: true}
}

// invalidate forces the next draw to repaint every row.
func (v *view) invalidate() { v.full = true }

// draw paints changed rows, places the cursor and shows the result.
func (v *view) draw() {
	_, rows := v.emu.Size()
	if v.full {
		v.host.Clear()
		for y := 0; y < rows; y++ {
			v.drawRow(y)
		}
		v.full = false
	} else {
		for _, y := range v.emu.DirtyRows() {
			v.drawRow(y)
		}
	}
	v.emu.ResetDirty()

	if v.emu.Modes().CursorVisible {
		row, col := v.emu.Cursor()
		v.host.ShowCursor(col, row)
	} else {
		v.host.HideCursor()
	}
	v.host.Show()
}

func (v *view) drawRow(y int) {
	row, ok := v.emu.Row(y)
	if !ok {
		return
	}
	for x, c := range row.Cells() {
		r := c.Rune
		if c.Attrs.Has(screen.AttrInvisible) {
			r = ' '
		}
		var comb []rune
		if len(c.Combining) > 0 && r != ' ' {
			comb = c.Combining
		}
		v.host.SetContent(x, y, r, comb, cellStyle(c.Attrs))
	}
}

// cellStyle maps cell attributes to a tcell style.
func cellStyle(a screen.Attributes) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(tcellColor(a.FG)).
		Background(tcellColor(a.BG)).
		Bold(a.Has(screen.AttrBold)).
		Italic(a.Has(screen.AttrItalic)).
		Underline(a.Has(screen.AttrUnderline)).
		Reverse(a.Has(screen.AttrInverse)).
		Blink(a.Has(screen.AttrBlink))
	if a.Link != "" {
		style = style.Url(a.Link)
	}
	return style
}

func tcellColor(c screen.Color) tcell.Color {
	switch c.Mode {
	case screen.ColorModeStandard, screen.ColorMode256:
		return tcell.PaletteColor(int(c.Value))
	case screen.ColorModeRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}
