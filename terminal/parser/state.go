// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/state.go
// Summary: Parser states and the byte transition table.
// Notes: Every (state, byte) pair has an entry; the table is the single
//        source of truth for where a byte goes and what it does.

package parser

// State is a state of the escape-sequence automaton.
type State uint8

const (
	StateGround State = iota
	StateEscape
	StateCsiEntry
	StateCsiParam
	StateCsiIntermediate
	StateOscString
	StateSosPmApcString
	StateDcsEntry
	StateDcsParam
	StateDcsIntermediate
	StateDcsPassthrough
	StateIgnoreUntilGround
	stateCount
)

var stateNames = [stateCount]string{
	"Ground", "Escape", "CsiEntry", "CsiParam", "CsiIntermediate", "OscString",
	"SosPmApcString", "DcsEntry", "DcsParam", "DcsIntermediate", "DcsPassthrough",
	"IgnoreUntilGround",
}

func (s State) String() string {
	if s < stateCount {
		return stateNames[s]
	}
	return "State(?)"
}

// action is what the parser does with a byte before moving to the next state.
type action uint8

const (
	actNone        action = iota
	actIgnore             // drop the byte
	actPrint              // accumulate into the UTF-8 decoder and print
	actExecute            // run a C0 control
	actEnterEscape        // abandon any sequence and start an escape
	actClear              // reset params and intermediates
	actCollect            // intermediate byte
	actPrefix             // private marker at sequence start
	actParam              // digit or separator
	actMalformed          // byte that invalidates the current sequence
	actEscDispatch        // final byte of an escape
	actCsiDispatch        // final byte of a CSI sequence
	actOscStart           // begin OSC payload
	actOscPut             // payload byte
	actOscEnd             // BEL terminator
	actHook               // DCS final byte, payload follows
	actPut                // DCS payload byte
	actUnhook             // DCS BEL terminator
	actStringEsc          // ESC inside a string: may be the first half of ST
	actStringST           // 8-bit ST inside a string
)

type transition struct {
	act  action
	next State
}

var table [stateCount][256]transition

func init() {
	buildTable()
}

func fill(s State, from, to byte, act action, next State) {
	for b := int(from); b <= int(to); b++ {
		table[s][b] = transition{act, next}
	}
}

// c0 routes C0 controls (except ESC) to execute while staying in s.
func c0(s State) {
	fill(s, 0x00, 0x1a, actExecute, s)
	fill(s, 0x1c, 0x1f, actExecute, s)
	table[s][0x1b] = transition{actEnterEscape, StateEscape}
}

func buildTable() {
	// Ground
	c0(StateGround)
	fill(StateGround, 0x20, 0xff, actPrint, StateGround)
	table[StateGround][0x7f] = transition{actExecute, StateGround}

	// Escape
	c0(StateEscape)
	fill(StateEscape, 0x20, 0x2f, actCollect, StateEscape)
	fill(StateEscape, 0x30, 0x7e, actEscDispatch, StateGround)
	fill(StateEscape, 0x80, 0xff, actEscDispatch, StateGround)
	table[StateEscape][0x7f] = transition{actIgnore, StateEscape}
	table[StateEscape]['['] = transition{actClear, StateCsiEntry}
	table[StateEscape][']'] = transition{actOscStart, StateOscString}
	table[StateEscape]['P'] = transition{actClear, StateDcsEntry}
	table[StateEscape]['X'] = transition{actClear, StateSosPmApcString}
	table[StateEscape]['^'] = transition{actClear, StateSosPmApcString}
	table[StateEscape]['_'] = transition{actClear, StateSosPmApcString}

	// CSI
	for _, s := range []State{StateCsiEntry, StateCsiParam, StateCsiIntermediate} {
		c0(s)
		fill(s, 0x20, 0x2f, actCollect, StateCsiIntermediate)
		fill(s, 0x40, 0x7e, actCsiDispatch, StateGround)
		fill(s, 0x80, 0xff, actIgnore, s)
		table[s][0x7f] = transition{actIgnore, s}
	}
	fill(StateCsiEntry, 0x30, 0x3b, actParam, StateCsiParam)
	fill(StateCsiEntry, 0x3c, 0x3f, actPrefix, StateCsiParam)
	fill(StateCsiParam, 0x30, 0x3b, actParam, StateCsiParam)
	fill(StateCsiParam, 0x3c, 0x3f, actMalformed, StateCsiParam)
	fill(StateCsiIntermediate, 0x30, 0x3f, actMalformed, StateCsiIntermediate)

	// OSC
	fill(StateOscString, 0x00, 0x1f, actIgnore, StateOscString)
	fill(StateOscString, 0x20, 0xff, actOscPut, StateOscString)
	table[StateOscString][0x07] = transition{actOscEnd, StateGround}
	table[StateOscString][0x1b] = transition{actStringEsc, StateEscape}
	table[StateOscString][0x9c] = transition{actStringST, StateOscString}

	// SOS / PM / APC
	fill(StateSosPmApcString, 0x00, 0xff, actIgnore, StateSosPmApcString)
	table[StateSosPmApcString][0x07] = transition{actNone, StateGround}
	table[StateSosPmApcString][0x1b] = transition{actStringEsc, StateEscape}
	table[StateSosPmApcString][0x9c] = transition{actNone, StateGround}

	// DCS header
	for _, s := range []State{StateDcsEntry, StateDcsParam, StateDcsIntermediate} {
		c0(s)
		table[s][0x1b] = transition{actStringEsc, StateEscape}
		table[s][0x07] = transition{actUnhook, StateGround}
		fill(s, 0x20, 0x2f, actCollect, StateDcsIntermediate)
		fill(s, 0x40, 0x7e, actHook, StateDcsPassthrough)
		fill(s, 0x80, 0xff, actIgnore, s)
		table[s][0x7f] = transition{actIgnore, s}
		table[s][0x9c] = transition{actUnhook, StateGround}
	}
	fill(StateDcsEntry, 0x30, 0x3b, actParam, StateDcsParam)
	fill(StateDcsEntry, 0x3c, 0x3f, actPrefix, StateDcsParam)
	fill(StateDcsParam, 0x30, 0x3b, actParam, StateDcsParam)
	fill(StateDcsParam, 0x3c, 0x3f, actNone, StateIgnoreUntilGround)
	fill(StateDcsIntermediate, 0x30, 0x3f, actNone, StateIgnoreUntilGround)

	// DCS payload
	c0(StateDcsPassthrough)
	fill(StateDcsPassthrough, 0x20, 0xff, actPut, StateDcsPassthrough)
	table[StateDcsPassthrough][0x07] = transition{actUnhook, StateGround}
	table[StateDcsPassthrough][0x1b] = transition{actStringEsc, StateEscape}
	table[StateDcsPassthrough][0x9c] = transition{actStringST, StateDcsPassthrough}

	// Ignore
	fill(StateIgnoreUntilGround, 0x00, 0xff, actIgnore, StateIgnoreUntilGround)
	table[StateIgnoreUntilGround][0x1b] = transition{actStringEsc, StateEscape}
	table[StateIgnoreUntilGround][0x9c] = transition{actNone, StateGround}
}
