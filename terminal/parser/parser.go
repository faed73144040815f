// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/parser.go
// Summary: Byte-stream escape-sequence parser driving two screen buffers.
// Usage: Feed raw pty output; read the grid through the screen buffers.
// Notes: All state survives across Feed calls, so splitting the stream at
//        any byte boundary yields the same result as feeding it whole.

package parser

import (
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"

	"github.com/framegrace/vtengine/internal/logging"
	"github.com/framegrace/vtengine/terminal/screen"
)

// ScreenID selects one of the two buffers.
type ScreenID int

const (
	Primary ScreenID = iota
	Alternate
)

func (id ScreenID) String() string {
	if id == Alternate {
		return "alternate"
	}
	return "primary"
}

const (
	maxParams       = 16
	maxParamValue   = 65535
	maxIntermediate = 2
	maxOSCBytes     = 1 << 20
	maxDCSBytes     = 4 << 20
)

type stringKind uint8

const (
	stringNone stringKind = iota
	stringOSC
	stringDCS
	stringIgnored
)

// Modes is the set of terminal modes the parser tracks.
type Modes struct {
	Insert         bool // IRM
	NewLine        bool // LNM
	Origin         bool // DECOM
	AutoWrap       bool // DECAWM
	CursorVisible  bool // DECTCEM
	AppCursorKeys  bool // DECCKM
	AppKeypad      bool // DECKPAM
	BracketedPaste bool
}

func defaultModes() Modes {
	return Modes{AutoWrap: true, CursorVisible: true}
}

type charset uint8

const (
	charsetASCII charset = iota
	charsetDECGraphics
)

type savedCursor struct {
	valid    bool
	row, col int
	pen      screen.Attributes
	origin   bool
	charsets [2]charset
	gl       int
}

// DeviceControl is a complete DCS string handed to the device-control
// handler.
type DeviceControl struct {
	Prefix        byte
	Params        []int
	Intermediates string
	Final         byte
	Data          []byte
}

// Parser decodes a terminal byte stream and applies it to the active buffer.
type Parser struct {
	state   State
	screens [2]*screen.Buffer
	active  ScreenID

	params        []int
	prefix        byte
	intermediates []byte
	malformed     bool

	openString stringKind
	osc        []byte
	oscPending int // continuation bytes still expected in osc
	dcs        DeviceControl
	dcsPending int
	hooked     bool

	utf8Buf [utf8.UTFMax]byte
	utf8Len int

	pen         screen.Attributes
	modes       Modes
	saved       [2]savedCursor
	charsets    [2]charset
	gl          int
	lastPrinted rune
	title       string
	iconName    string

	respond         func([]byte)
	onTitle         func(string)
	onBell          func()
	onClipboard     func(selection string, data []byte)
	onDeviceControl func(DeviceControl)
	onWorkingDir    func(string)
	onScreenChange  func(ScreenID)
	log             logrus.FieldLogger
}

// Option configures a Parser.
type Option func(*Parser)

// WithResponder sets where terminal replies (DSR, DA, DECRQSS) are written.
func WithResponder(fn func([]byte)) Option { return func(p *Parser) { p.respond = fn } }

// WithTitleHandler is called when OSC 0 or 2 sets the window title.
func WithTitleHandler(fn func(string)) Option { return func(p *Parser) { p.onTitle = fn } }

// WithBellHandler is called on BEL.
func WithBellHandler(fn func()) Option { return func(p *Parser) { p.onBell = fn } }

// WithClipboardHandler receives decoded OSC 52 clipboard writes.
func WithClipboardHandler(fn func(selection string, data []byte)) Option {
	return func(p *Parser) { p.onClipboard = fn }
}

// WithDeviceControlHandler receives DCS strings the parser does not answer
// itself.
func WithDeviceControlHandler(fn func(DeviceControl)) Option {
	return func(p *Parser) { p.onDeviceControl = fn }
}

// WithWorkingDirHandler receives OSC 7 working directory paths.
func WithWorkingDirHandler(fn func(string)) Option {
	return func(p *Parser) { p.onWorkingDir = fn }
}

// WithScreenChangeHandler is called when the active screen changes.
func WithScreenChangeHandler(fn func(ScreenID)) Option {
	return func(p *Parser) { p.onScreenChange = fn }
}

// WithLogger sets the logger for unhandled sequences.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Parser) { p.log = l }
}

// New returns a parser writing to primary and alternate. Both buffers must
// have the same geometry.
func New(primary, alternate *screen.Buffer, opts ...Option) *Parser {
	p := &Parser{
		screens:       [2]*screen.Buffer{primary, alternate},
		params:        make([]int, 0, maxParams),
		intermediates: make([]byte, 0, maxIntermediate),
		osc:           make([]byte, 0, 256),
		pen:           screen.DefaultAttributes,
		modes:         defaultModes(),
		log:           logging.Discard(),
	}
	p.dcs.Data = make([]byte, 0, 256)
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithField("component", "parser")
	return p
}

// State returns the current automaton state.
func (p *Parser) State() State { return p.state }

// Active returns which screen is receiving output.
func (p *Parser) Active() ScreenID { return p.active }

// Screen returns the active buffer.
func (p *Parser) Screen() *screen.Buffer { return p.screens[p.active] }

// ScreenFor returns the buffer for id.
func (p *Parser) ScreenFor(id ScreenID) *screen.Buffer { return p.screens[id] }

// Modes returns the current mode flags.
func (p *Parser) Modes() Modes { return p.modes }

// Pen returns the attributes applied to newly written glyphs.
func (p *Parser) Pen() screen.Attributes { return p.pen }

// Title returns the last title set by OSC 0 or 2.
func (p *Parser) Title() string { return p.title }

// IconName returns the last icon name set by OSC 0 or 1.
func (p *Parser) IconName() string { return p.iconName }

// Feed consumes bytes in order. It never fails: malformed input is dropped.
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		prev := p.state
		t := table[prev][b]
		p.state = t.next
		p.perform(t.act, b, prev)
	}
}

// Reset returns the parser and both screens to power-on state. Accumulation
// buffers are truncated, not reallocated.
func (p *Parser) Reset() {
	p.state = StateGround
	p.clearSequence()
	p.openString = stringNone
	p.osc = p.osc[:0]
	p.oscPending = 0
	p.resetDCS()
	p.utf8Len = 0
	p.pen = screen.DefaultAttributes
	p.modes = defaultModes()
	p.saved = [2]savedCursor{}
	p.charsets = [2]charset{}
	p.gl = 0
	p.lastPrinted = 0
	p.title = ""
	p.iconName = ""
	prev := p.active
	p.active = Primary
	for _, s := range p.screens {
		s.Reset()
	}
	if prev != Primary && p.onScreenChange != nil {
		p.onScreenChange(Primary)
	}
}

func (p *Parser) perform(act action, b byte, prev State) {
	switch act {
	case actNone, actIgnore:
	case actPrint:
		p.print(b)
	case actExecute:
		p.flushUTF8()
		p.execute(b)
	case actEnterEscape:
		p.flushUTF8()
		p.discardOpenString()
		p.intermediates = p.intermediates[:0]
	case actClear:
		p.discardOpenString()
		p.clearSequence()
		if p.state == StateDcsEntry {
			p.resetDCS()
		}
	case actCollect:
		if len(p.intermediates) < maxIntermediate {
			p.intermediates = append(p.intermediates, b)
		} else {
			p.malformed = true
		}
	case actPrefix:
		p.prefix = b
	case actParam:
		p.param(b)
	case actMalformed:
		p.malformed = true
	case actEscDispatch:
		p.escDispatch(b)
	case actCsiDispatch:
		p.csiDispatch(b)
	case actOscStart:
		p.discardOpenString()
		p.osc = p.osc[:0]
		p.oscPending = 0
	case actOscPut:
		p.oscPut(b)
	case actOscEnd:
		p.oscDispatch()
	case actHook:
		p.hook(b)
	case actPut:
		p.dcsPut(b)
	case actUnhook:
		p.unhook()
	case actStringEsc:
		p.openString = stringKindOf(prev)
		p.intermediates = p.intermediates[:0]
	case actStringST:
		p.stringST(b)
	}
}

func stringKindOf(s State) stringKind {
	switch s {
	case StateOscString:
		return stringOSC
	case StateDcsEntry, StateDcsParam, StateDcsIntermediate, StateDcsPassthrough:
		return stringDCS
	}
	return stringIgnored
}

func (p *Parser) clearSequence() {
	p.params = p.params[:0]
	p.intermediates = p.intermediates[:0]
	p.prefix = 0
	p.malformed = false
}

func (p *Parser) param(b byte) {
	if p.malformed {
		return
	}
	if b == ';' || b == ':' {
		if len(p.params) == 0 {
			p.params = append(p.params, 0)
		}
		if len(p.params) == maxParams {
			p.malformed = true
			return
		}
		p.params = append(p.params, 0)
		return
	}
	if len(p.params) == 0 {
		p.params = append(p.params, 0)
	}
	i := len(p.params) - 1
	if v := p.params[i]*10 + int(b-'0'); v <= maxParamValue {
		p.params[i] = v
	} else {
		p.params[i] = maxParamValue
	}
}

// print feeds one byte of printable text through the UTF-8 decoder.
func (p *Parser) print(b byte) {
	if p.utf8Len == 0 && b < utf8.RuneSelf {
		p.emit(rune(b))
		return
	}
	p.utf8Buf[p.utf8Len] = b
	p.utf8Len++
	for p.utf8Len > 0 {
		buf := p.utf8Buf[:p.utf8Len]
		if !utf8.FullRune(buf) {
			return
		}
		r, size := utf8.DecodeRune(buf)
		p.emit(r)
		p.utf8Len = copy(p.utf8Buf[:], buf[size:])
	}
}

// flushUTF8 turns an incomplete sequence into one replacement character.
func (p *Parser) flushUTF8() {
	if p.utf8Len > 0 {
		p.utf8Len = 0
		p.emit(utf8.RuneError)
	}
}

var decGraphics = map[rune]rune{
	'`': '◆', 'a': '▒', 'b': '␉', 'c': '␌', 'd': '␍', 'e': '␊', 'f': '°',
	'g': '±', 'h': '␤', 'i': '␋', 'j': '┘', 'k': '┐', 'l': '┌', 'm': '└',
	'n': '┼', 'o': '⎺', 'p': '⎻', 'q': '─', 'r': '⎼', 's': '⎽', 't': '├',
	'u': '┤', 'v': '┴', 'w': '┬', 'x': '│', 'y': '≤', 'z': '≥', '{': 'π',
	'|': '≠', '}': '£', '~': '·',
}

func (p *Parser) emit(r rune) {
	if p.charsets[p.gl] == charsetDECGraphics {
		if g, ok := decGraphics[r]; ok {
			r = g
		}
	}
	s := p.Screen()
	if p.modes.Insert && !s.WrapPending() && runewidth.RuneWidth(r) > 0 {
		s.InsertBlanks(1)
	}
	s.WriteGlyph(r, p.pen)
	p.lastPrinted = r
}

func (p *Parser) reply(s string) {
	if p.respond != nil {
		p.respond([]byte(s))
	}
}
