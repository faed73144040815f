// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: terminal/parser/osc.go
// Summary: Operating System Command payload collection and dispatch.
// Usage: Titles (0/1/2), working directory (7), hyperlinks (8), clipboard (52).

package parser

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
)

func (p *Parser) oscPut(b byte) {
	p.oscPending = utf8Pending(p.oscPending, b)
	if len(p.osc) < maxOSCBytes {
		p.osc = append(p.osc, b)
	}
}

func (p *Parser) oscDispatch() {
	payload := p.osc
	p.osc = p.osc[:0]
	p.oscPending = 0

	idPart, arg, _ := bytes.Cut(payload, []byte{';'})
	id, err := strconv.Atoi(string(idPart))
	if err != nil {
		p.log.WithField("payload", string(payload)).Debug("Parser: malformed OSC")
		return
	}

	switch id {
	case 0, 1, 2:
		text := string(arg)
		if id != 2 {
			p.iconName = text
		}
		if id != 1 {
			p.title = text
			if p.onTitle != nil {
				p.onTitle(text)
			}
		}
	case 7:
		if p.onWorkingDir == nil {
			return
		}
		u, err := url.Parse(string(arg))
		if err != nil || u.Path == "" {
			p.log.WithField("uri", string(arg)).Debug("Parser: invalid OSC 7 location")
			return
		}
		p.onWorkingDir(u.Path)
	case 8:
		// OSC 8 ; params ; uri. An empty uri closes the link.
		_, uri, ok := bytes.Cut(arg, []byte{';'})
		if !ok {
			return
		}
		p.pen.Link = string(uri)
	case 52:
		p.clipboard(arg)
	default:
		p.log.WithFields(logrus.Fields{"id": id}).Debug("Parser: unhandled OSC")
	}
}

// clipboard handles OSC 52 writes. Queries ("?") are not answered.
func (p *Parser) clipboard(arg []byte) {
	sel, data, ok := bytes.Cut(arg, []byte{';'})
	if !ok || p.onClipboard == nil {
		return
	}
	if string(data) == "?" {
		p.log.Debug("Parser: ignoring OSC 52 clipboard query")
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		p.log.WithError(err).Debug("Parser: invalid OSC 52 payload")
		return
	}
	selection := string(sel)
	if selection == "" {
		selection = "s0"
	}
	p.onClipboard(selection, decoded)
}
