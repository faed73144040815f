package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/vtengine/terminal/parser"
)

func TestEncodeKey(t *testing.T) {
	normal := parser.Modes{}
	app := parser.Modes{AppCursorKeys: true}
	lnm := parser.Modes{NewLine: true}

	tests := []struct {
		name  string
		key   tcell.Key
		ch    rune
		mod   tcell.ModMask
		modes parser.Modes
		want  string
	}{
		{"rune", tcell.KeyRune, 'a', tcell.ModNone, normal, "a"},
		{"utf8 rune", tcell.KeyRune, '\u00e9', tcell.ModNone, normal, "\u00e9"},
		{"alt rune", tcell.KeyRune, 'x', tcell.ModAlt, normal, "\x1bx"},
		{"enter", tcell.KeyEnter, 0, tcell.ModNone, normal, "\r"},
		{"enter newline mode", tcell.KeyEnter, 0, tcell.ModNone, lnm, "\r\n"},
		{"backspace", tcell.KeyBackspace2, 0, tcell.ModNone, normal, "\x7f"},
		{"tab", tcell.KeyTab, 0, tcell.ModNone, normal, "\t"},
		{"escape", tcell.KeyEscape, 0, tcell.ModNone, normal, "\x1b"},
		{"ctrl-c", tcell.KeyCtrlC, 0, tcell.ModCtrl, normal, "\x03"},
		{"ctrl rune", tcell.KeyRune, 'd', tcell.ModCtrl, normal, "\x04"},
		{"ctrl bracket", tcell.KeyRune, '[', tcell.ModCtrl, normal, "\x1b"},
		{"up", tcell.KeyUp, 0, tcell.ModNone, normal, "\x1b[A"},
		{"up app mode", tcell.KeyUp, 0, tcell.ModNone, app, "\x1bOA"},
		{"left app mode", tcell.KeyLeft, 0, tcell.ModNone, app, "\x1bOD"},
		{"home", tcell.KeyHome, 0, tcell.ModNone, app, "\x1b[H"},
		{"delete", tcell.KeyDelete, 0, tcell.ModNone, normal, "\x1b[3~"},
		{"f1", tcell.KeyF1, 0, tcell.ModNone, normal, "\x1bOP"},
		{"f12", tcell.KeyF12, 0, tcell.ModNone, normal, "\x1b[24~"},
		{"backtab", tcell.KeyBacktab, 0, tcell.ModNone, normal, "\x1b[Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeKey(tcell.NewEventKey(tt.key, tt.ch, tt.mod), tt.modes)
			if string(got) != tt.want {
				t.Errorf("encodeKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeKeyUnknown(t *testing.T) {
	if got := encodeKey(tcell.NewEventKey(tcell.KeyF40, 0, tcell.ModNone), parser.Modes{}); got != nil {
		t.Errorf("encodeKey(F40) = %q, want nil", got)
	}
}
