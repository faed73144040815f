// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/dcs.go
// Summary: Device Control String collection and dispatch.
// Notes: DECRQSS ($q) is answered here; every other DCS is passed through to
//        the device-control handler untouched.

package parser

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func (p *Parser) resetDCS() {
	p.hooked = false
	p.dcsPending = 0
	p.dcs.Prefix = 0
	p.dcs.Params = nil
	p.dcs.Intermediates = ""
	p.dcs.Final = 0
	p.dcs.Data = p.dcs.Data[:0]
}

// hook records the DCS header when its final byte arrives.
func (p *Parser) hook(final byte) {
	if p.malformed {
		p.state = StateIgnoreUntilGround
		return
	}
	p.hooked = true
	p.dcs.Prefix = p.prefix
	p.dcs.Params = append([]int(nil), p.params...)
	p.dcs.Intermediates = string(p.intermediates)
	p.dcs.Final = final
	p.dcs.Data = p.dcs.Data[:0]
	p.dcsPending = 0
}

func (p *Parser) dcsPut(b byte) {
	p.dcsPending = utf8Pending(p.dcsPending, b)
	if len(p.dcs.Data) < maxDCSBytes {
		p.dcs.Data = append(p.dcs.Data, b)
	}
}

// unhook dispatches a completed DCS. A string terminated before its final
// byte is dropped.
func (p *Parser) unhook() {
	if !p.hooked {
		p.resetDCS()
		return
	}
	dc := p.dcs
	dc.Data = append([]byte(nil), p.dcs.Data...)
	p.resetDCS()

	if dc.Intermediates == "$" && dc.Final == 'q' {
		p.requestStatusString(string(dc.Data))
		return
	}
	if p.onDeviceControl != nil {
		p.onDeviceControl(dc)
		return
	}
	p.log.WithFields(logrus.Fields{
		"final": string(rune(dc.Final)),
		"bytes": len(dc.Data),
	}).Debug("Parser: unhandled DCS")
}

// requestStatusString answers DECRQSS for SGR and DECSTBM.
func (p *Parser) requestStatusString(query string) {
	switch query {
	case "m":
		p.reply("\x1bP1$r" + sgrString(p.pen) + "m\x1b\\")
	case "r":
		top, bottom := p.Screen().Margins()
		p.reply(fmt.Sprintf("\x1bP1$r%d;%dr\x1b\\", top+1, bottom+1))
	default:
		p.reply("\x1bP0$r\x1b\\")
	}
}
