// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/screen/cell.go
// Summary: Cell, colour and attribute value types for the screen buffer.
// Usage: Shared by the parser (pen state) and consumers reading the grid.

package screen

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Attribute is a bit set of text style flags.
type Attribute uint16

const (
	AttrBold Attribute = 1 << iota
	AttrItalic
	AttrUnderline
	AttrInverse
	AttrBlink
	AttrInvisible
)

var attrNames = []struct {
	flag Attribute
	name string
}{
	{AttrBold, "bold"},
	{AttrItalic, "italic"},
	{AttrUnderline, "underline"},
	{AttrInverse, "inverse"},
	{AttrBlink, "blink"},
	{AttrInvisible, "invisible"},
}

// String returns a human-readable representation of the attribute flags.
func (a Attribute) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for _, n := range attrNames {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// ColorMode defines the type of color stored.
type ColorMode uint8

const (
	ColorModeDefault  ColorMode = iota // Default terminal color
	ColorModeStandard                  // The 16 ANSI colors (0-7 normal, 8-15 bright)
	ColorMode256                       // 256-color palette
	ColorModeRGB                       // 24-bit "true" color
)

// Color represents a color in one of the supported modes.
type Color struct {
	Mode    ColorMode
	Value   uint8 // Palette index for Standard and 256 modes
	R, G, B uint8 // Components for RGB mode
}

// DefaultColor is the terminal's default foreground/background.
var DefaultColor = Color{Mode: ColorModeDefault}

// Standard returns one of the 16 ANSI palette colors.
func Standard(index uint8) Color { return Color{Mode: ColorModeStandard, Value: index} }

// Indexed returns a 256-palette color.
func Indexed(index uint8) Color { return Color{Mode: ColorMode256, Value: index} }

// RGB returns a truecolor value.
func RGB(r, g, b uint8) Color { return Color{Mode: ColorModeRGB, R: r, G: g, B: b} }

// Attributes is the rendition applied to a cell. It is a plain value:
// copying it copies everything and == compares everything.
type Attributes struct {
	FG    Color
	BG    Color
	Flags Attribute
	// Link is the OSC 8 hyperlink target, empty when none.
	Link string
}

// DefaultAttributes is the rendition of a cleared cell.
var DefaultAttributes = Attributes{FG: DefaultColor, BG: DefaultColor}

// Has reports whether all flags in f are set.
func (a Attributes) Has(f Attribute) bool { return a.Flags&f == f }

// Cell is one grid position.
type Cell struct {
	Rune rune
	// Combining holds zero-width code points attached to Rune, in order.
	Combining []rune
	Attrs     Attributes
	Dirty     bool
}

// Blank returns a cleared cell.
func Blank() Cell {
	return Cell{Rune: ' ', Attrs: DefaultAttributes, Dirty: true}
}

// Glyphs returns the cell's code points in order.
func (c Cell) Glyphs() []rune {
	out := make([]rune, 0, 1+len(c.Combining))
	out = append(out, c.Rune)
	return append(out, c.Combining...)
}

// String returns the cell's text in NFC form.
func (c Cell) String() string {
	if len(c.Combining) == 0 {
		return string(c.Rune)
	}
	return norm.NFC.String(string(c.Glyphs()))
}

// IsBlank reports whether the cell is in the cleared state.
func (c Cell) IsBlank() bool {
	return c.Rune == ' ' && len(c.Combining) == 0 && c.Attrs == DefaultAttributes
}

// Equal compares content and attributes, ignoring the dirty flag.
func (c Cell) Equal(o Cell) bool {
	if c.Rune != o.Rune || c.Attrs != o.Attrs || len(c.Combining) != len(o.Combining) {
		return false
	}
	for i, r := range c.Combining {
		if o.Combining[i] != r {
			return false
		}
	}
	return true
}

// withCombining returns c with r appended to its combining marks. The
// slice is always reallocated so copies of c never share storage.
func (c Cell) withCombining(r rune) Cell {
	marks := make([]rune, len(c.Combining), len(c.Combining)+1)
	copy(marks, c.Combining)
	c.Combining = append(marks, r)
	return c
}
