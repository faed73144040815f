// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/sgr.go
// Summary: SGR (Select Graphic Rendition) - text attributes and colors.

package parser

import (
	"strconv"
	"strings"

	"github.com/framegrace/vtengine/terminal/screen"
)

// selectGraphicRendition updates the pen. Extended colours accept both
// `38;5;n` and `38:5:n` since ':' is read as a separator.
func (p *Parser) selectGraphicRendition(ps Params) {
	if len(ps) == 0 {
		ps = Params{0}
	}
	for i := 0; i < len(ps); i++ {
		n := ps[i]
		switch {
		case n == 0:
			link := p.pen.Link
			p.pen = screen.DefaultAttributes
			p.pen.Link = link
		case n == 1:
			p.pen.Flags |= screen.AttrBold
		case n == 3:
			p.pen.Flags |= screen.AttrItalic
		case n == 4:
			p.pen.Flags |= screen.AttrUnderline
		case n == 5:
			p.pen.Flags |= screen.AttrBlink
		case n == 7:
			p.pen.Flags |= screen.AttrInverse
		case n == 8:
			p.pen.Flags |= screen.AttrInvisible
		case n == 22:
			p.pen.Flags &^= screen.AttrBold
		case n == 23:
			p.pen.Flags &^= screen.AttrItalic
		case n == 24:
			p.pen.Flags &^= screen.AttrUnderline
		case n == 25:
			p.pen.Flags &^= screen.AttrBlink
		case n == 27:
			p.pen.Flags &^= screen.AttrInverse
		case n == 28:
			p.pen.Flags &^= screen.AttrInvisible
		case n >= 30 && n <= 37:
			p.pen.FG = screen.Standard(uint8(n - 30))
		case n == 38:
			var c screen.Color
			if c, i = extendedColor(ps, i); c.Mode != screen.ColorModeDefault {
				p.pen.FG = c
			}
		case n == 39:
			p.pen.FG = screen.DefaultColor
		case n >= 40 && n <= 47:
			p.pen.BG = screen.Standard(uint8(n - 40))
		case n == 48:
			var c screen.Color
			if c, i = extendedColor(ps, i); c.Mode != screen.ColorModeDefault {
				p.pen.BG = c
			}
		case n == 49:
			p.pen.BG = screen.DefaultColor
		case n >= 90 && n <= 97:
			p.pen.FG = screen.Standard(uint8(n - 90 + 8))
		case n >= 100 && n <= 107:
			p.pen.BG = screen.Standard(uint8(n - 100 + 8))
		}
	}
}

// extendedColor decodes the sub-parameters following a 38 or 48 at index i.
// It returns the colour (default mode if incomplete) and the index of the
// last parameter consumed.
func extendedColor(ps Params, i int) (screen.Color, int) {
	switch ps.Selector(i + 1) {
	case 5:
		if i+2 < len(ps) {
			return screen.Indexed(channel(ps[i+2])), i + 2
		}
		return screen.DefaultColor, len(ps) - 1
	case 2:
		if i+4 < len(ps) {
			return screen.RGB(channel(ps[i+2]), channel(ps[i+3]), channel(ps[i+4])), i + 4
		}
		return screen.DefaultColor, len(ps) - 1
	}
	return screen.DefaultColor, i
}

func channel(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}

// sgrString renders attributes as the SGR parameter list that selects them
// from a reset pen, as reported by DECRQSS.
func sgrString(a screen.Attributes) string {
	parts := []string{"0"}
	for _, f := range []struct {
		flag screen.Attribute
		code string
	}{
		{screen.AttrBold, "1"},
		{screen.AttrItalic, "3"},
		{screen.AttrUnderline, "4"},
		{screen.AttrBlink, "5"},
		{screen.AttrInverse, "7"},
		{screen.AttrInvisible, "8"},
	} {
		if a.Has(f.flag) {
			parts = append(parts, f.code)
		}
	}
	parts = appendColor(parts, a.FG, 30, 90, 38)
	parts = appendColor(parts, a.BG, 40, 100, 48)
	return strings.Join(parts, ";")
}

func appendColor(parts []string, c screen.Color, base, bright, ext int) []string {
	switch c.Mode {
	case screen.ColorModeStandard:
		if c.Value < 8 {
			return append(parts, strconv.Itoa(base+int(c.Value)))
		}
		return append(parts, strconv.Itoa(bright+int(c.Value)-8))
	case screen.ColorMode256:
		return append(parts, strconv.Itoa(ext), "5", strconv.Itoa(int(c.Value)))
	case screen.ColorModeRGB:
		return append(parts, strconv.Itoa(ext), "2",
			strconv.Itoa(int(c.R)), strconv.Itoa(int(c.G)), strconv.Itoa(int(c.B)))
	}
	return parts
}
