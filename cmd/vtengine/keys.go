// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/vtengine/keys.go
// Summary: Encodes host key events as the bytes a VT-class terminal sends.

package main

import (
	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/vtengine/terminal/parser"
)

var keySequences = map[tcell.Key]string{
	tcell.KeyHome:    "\x1b[H",
	tcell.KeyEnd:     "\x1b[F",
	tcell.KeyInsert:  "\x1b[2~",
	tcell.KeyDelete:  "\x1b[3~",
	tcell.KeyPgUp:    "\x1b[5~",
	tcell.KeyPgDn:    "\x1b[6~",
	tcell.KeyBacktab: "\x1b[Z",
	tcell.KeyF1:      "\x1bOP",
	tcell.KeyF2:      "\x1bOQ",
	tcell.KeyF3:      "\x1bOR",
	tcell.KeyF4:      "\x1bOS",
	tcell.KeyF5:      "\x1b[15~",
	tcell.KeyF6:      "\x1b[17~",
	tcell.KeyF7:      "\x1b[18~",
	tcell.KeyF8:      "\x1b[19~",
	tcell.KeyF9:      "\x1b[20~",
	tcell.KeyF10:     "\x1b[21~",
	tcell.KeyF11:     "\x1b[23~",
	tcell.KeyF12:     "\x1b[24~",
}

var cursorKeys = map[tcell.Key]byte{
	tcell.KeyUp:    'A',
	tcell.KeyDown:  'B',
	tcell.KeyRight: 'C',
	tcell.KeyLeft:  'D',
}

// encodeKey returns the bytes for ev under the program's modes, or nil for
// keys with no encoding.
func encodeKey(ev *tcell.EventKey, modes parser.Modes) []byte {
	key := ev.Key()
	alt := ev.Modifiers()&tcell.ModAlt != 0

	var out []byte
	switch {
	case key == tcell.KeyRune:
		if c, ok := controlByte(ev.Rune()); ok && ev.Modifiers()&tcell.ModCtrl != 0 {
			out = []byte{c}
			break
		}
		out = []byte(string(ev.Rune()))
	case key == tcell.KeyEnter:
		out = []byte{'\r'}
		if modes.NewLine {
			out = append(out, '\n')
		}
	case key == tcell.KeyBackspace2:
		out = []byte{0x7f}
	case cursorKeys[key] != 0:
		if modes.AppCursorKeys {
			out = []byte{0x1b, 'O', cursorKeys[key]}
		} else {
			out = []byte{0x1b, '[', cursorKeys[key]}
		}
	case keySequences[key] != "":
		out = []byte(keySequences[key])
	case key >= tcell.KeyCtrlSpace && key <= tcell.KeyCtrlUnderscore:
		// Tab, Esc, Backspace and the Ctrl-letter keys are their C0 codes.
		out = []byte{byte(key)}
	default:
		return nil
	}
	if alt {
		out = append([]byte{0x1b}, out...)
	}
	return out
}

// controlByte maps a rune typed with Ctrl to its C0 code.
func controlByte(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r-'a') + 1, true
	case r >= '@' && r <= '_':
		return byte(r - '@'), true
	case r == ' ':
		return 0, true
	case r == '?':
		return 0x7f, true
	}
	return 0, false
}
