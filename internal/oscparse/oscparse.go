// Package oscparse implements the streaming title/CWD scanner (spec.md
// §4.8): a state machine over PTY output bytes that recognizes OSC 0/2/7
// sequences and emits window-title or working-directory updates. There is
// no direct teacher analogue for OSC scanning; this is modeled on the
// teacher's general small-streaming-state-machine style (the CSI cursor
// scanner in internal/egg/server.go's trackCursorPos: byte-at-a-time state
// transitions, no backtracking, state carried across Write calls).
package oscparse

import (
	"net/url"
	"strings"
)

type state int

const (
	stateIdle state = iota
	stateGotESC
	stateGotBracket
	stateCollectCode
	stateCollectPayload
	statePayloadGotESC // payload ESC that might be the ST terminator
)

// Parser is a streaming OSC 0/2/7 scanner. Feed it PTY output with Write;
// OnTitle and OnCWD are invoked synchronously as sequences complete. Not
// safe for concurrent use — one Parser per PTY, fed from its single reader
// goroutine.
type Parser struct {
	OnTitle func(title string)
	OnCWD   func(cwd string)

	st      state
	code    strings.Builder
	payload strings.Builder
	accept  bool // whether the in-progress code is one we care about (0, 2, 7)
}

// New returns a Parser with the given callbacks. Either may be nil.
func New(onTitle func(string), onCWD func(string)) *Parser {
	return &Parser{OnTitle: onTitle, OnCWD: onCWD}
}

const (
	esc = 0x1B
	bel = 0x07
)

// Write feeds a chunk of PTY output through the scanner.
func (p *Parser) Write(chunk []byte) {
	for _, b := range chunk {
		p.step(b)
	}
}

func (p *Parser) step(b byte) {
	switch p.st {
	case stateIdle:
		if b == esc {
			p.st = stateGotESC
		}
	case stateGotESC:
		if b == ']' {
			p.st = stateGotBracket
			p.code.Reset()
		} else if b == esc {
			// stay in stateGotESC
		} else {
			p.st = stateIdle
		}
	case stateGotBracket:
		if b >= '0' && b <= '9' {
			p.code.WriteByte(b)
			p.st = stateCollectCode
		} else {
			p.st = stateIdle
		}
	case stateCollectCode:
		switch {
		case b >= '0' && b <= '9':
			p.code.WriteByte(b)
		case b == ';':
			code := p.code.String()
			p.accept = code == "0" || code == "2" || code == "7"
			p.payload.Reset()
			p.st = stateCollectPayload
		default:
			p.st = stateIdle
		}
	case stateCollectPayload:
		switch b {
		case bel:
			p.finish()
		case esc:
			p.st = statePayloadGotESC
		default:
			p.payload.WriteByte(b)
		}
	case statePayloadGotESC:
		if b == '\\' {
			p.finish()
		} else {
			// Not an ST terminator after all: the buffered ESC was part of
			// the payload (spec.md §4.8: "buffered into the payload and
			// resolved on the next write").
			p.payload.WriteByte(esc)
			p.payload.WriteByte(b)
			p.st = stateCollectPayload
		}
	}
}

func (p *Parser) finish() {
	defer func() {
		p.st = stateIdle
		p.code.Reset()
		p.payload.Reset()
	}()
	if !p.accept {
		return
	}
	code := p.code.String()
	payload := p.payload.String()
	switch code {
	case "0", "2":
		title := strings.TrimSpace(trimLeadingNonPrintable(payload))
		if title != "" && p.OnTitle != nil {
			p.OnTitle(title)
		}
	case "7":
		if cwd, ok := parseCWDURL(payload); ok && p.OnCWD != nil {
			p.OnCWD(cwd)
		}
	}
}

func trimLeadingNonPrintable(s string) string {
	i := 0
	for i < len(s) && (s[i] < 0x20 || s[i] == 0x7F) {
		i++
	}
	return s[i:]
}

// parseCWDURL parses a file:// URL payload and URL-decodes its pathname.
func parseCWDURL(payload string) (string, bool) {
	u, err := url.Parse(payload)
	if err != nil || u.Path == "" {
		return "", false
	}
	return u.Path, true
}
