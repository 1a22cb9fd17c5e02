package smtp

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"smtpcore/fsm"
)

// Receiver is the consumer of logical units the Parser assembles: either a
// recognised command (verb, argument) or an assembled DATA payload
// delivered as the MSGDATA pseudo-verb. The session implements this.
type Receiver interface {
	HandleInput(verb, argument string)
	InputExceedsLimits()
}

const (
	modeCommand     fsm.State  = "commands"
	modeData        fsm.State  = "data"
	modeAuthReply   fsm.State  = "authreply"
	toDataMode      fsm.Action = "DATA"
	toCmdMode       fsm.Action = "COMMAND"
	toAuthReplyMode fsm.Action = "AUTHWAIT"
)

var leadingDotRe = regexp.MustCompile(`(?m)^\.\.`)

// undoDotStuffing reverses RFC 5321 §4.5.2 transparency: a line beginning
// with ".." becomes ".", and \r\n line endings are normalised to \n.
func undoDotStuffing(data []byte) []byte {
	unstuffed := leadingDotRe.ReplaceAll(data, []byte("."))
	return bytes.ReplaceAll(unstuffed, []byte(CRLF), []byte("\n"))
}

// Parser is the command parser / line framer of the core: it demultiplexes
// a byte stream into command lines (terminated by "\r\n") or a DATA payload
// (terminated by "\r\n.\r\n"), and formats replies back onto the
// connection. One Parser is created per session and is not safe for
// concurrent use.
type Parser struct {
	out        io.Writer
	receiver   Receiver
	buf        []byte
	terminator string
	mode       *fsm.Machine
	maxSize    *int
}

// NewParser creates a Parser that writes replies to out and delivers
// logical units to receiver.
func NewParser(out io.Writer, receiver Receiver) *Parser {
	mode := fsm.New(modeCommand)
	p := &Parser{out: out, receiver: receiver, terminator: CRLF, mode: mode}
	// These handlers only retarget the terminator; buf itself already
	// holds whatever trailed the unit that triggered the switch (e.g. a
	// pipelined command right after "DATA\r\n") and must be preserved so
	// ProcessNewData re-scans it under the new terminator.
	mode.Add(modeCommand, modeData, toDataMode, func(fsm.State, fsm.State, fsm.Action) error {
		p.terminator = CRLF + "." + CRLF
		return nil
	}, nil, nil)
	mode.Add(modeData, modeCommand, toCmdMode, func(fsm.State, fsm.State, fsm.Action) error {
		p.terminator = CRLF
		return nil
	}, nil, nil)
	mode.Add(modeCommand, modeAuthReply, toAuthReplyMode, func(fsm.State, fsm.State, fsm.Action) error {
		p.terminator = CRLF
		return nil
	}, nil, nil)
	mode.Add(modeAuthReply, modeCommand, toCmdMode, func(fsm.State, fsm.State, fsm.Action) error {
		p.terminator = CRLF
		return nil
	}, nil, nil)
	return p
}

// SetMaximumMessageSize installs (or clears, with nil) the size guard
// applied to the parser's accumulator buffer.
func (p *Parser) SetMaximumMessageSize(max *int) {
	p.maxSize = max
}

// SwitchToDataMode is called by the session once it has accepted DATA: the
// client's following bytes are now message content, terminated by a bare
// "." line.
func (p *Parser) SwitchToDataMode() {
	_ = p.mode.Execute(toDataMode)
}

// SwitchToCommandMode is called by the session once MSGDATA has been
// delivered: the client is expected to send single command lines again.
func (p *Parser) SwitchToCommandMode() {
	_ = p.mode.Execute(toCmdMode)
}

// SwitchToAuthReplyMode is used during an AUTH LOGIN challenge/response
// exchange: the next line is a raw base64 token, not a command to be
// recognised against the verb table.
func (p *Parser) SwitchToAuthReplyMode() {
	_ = p.mode.Execute(toAuthReplyMode)
}

// ProcessNewData appends newly-read bytes to the internal buffer and
// delivers every complete logical unit the buffer now contains to the
// Receiver, in order; a read that lands several pipelined commands (or a
// command followed by data) in one call delivers all of them. Callers
// should keep feeding bytes as they arrive: framing does not depend on how
// the stream is split across calls.
func (p *Parser) ProcessNewData(data []byte) {
	p.buf = append(p.buf, data...)

	for {
		if p.maxSize != nil && len(p.buf) > *p.maxSize {
			p.buf = p.buf[:0]
			p.receiver.InputExceedsLimits()
			p.SwitchToCommandMode()
			return
		}

		idx := bytes.Index(p.buf, []byte(p.terminator))
		if idx == -1 {
			return
		}
		unit := append([]byte(nil), p.buf[:idx]...)
		p.buf = p.buf[idx+len(p.terminator):]

		switch p.mode.State() {
		case modeCommand:
			verb, argument, ok := RecognizeVerb(string(unit))
			if !ok {
				// Deliver the raw first token so the session can report it
				// as an unrecognised command; RecognizeVerb already
				// trimmed it.
				verb = firstToken(string(unit))
			}
			p.receiver.HandleInput(verb, argument)

		case modeAuthReply:
			p.receiver.HandleInput(VerbAuthContinuation, strings.TrimSpace(string(unit)))

		default: // modeData
			payload := undoDotStuffing(unit)
			p.receiver.HandleInput(VerbMsgData, string(payload))
		}

		// A mode switch triggered by the delivered unit (DATA/MSGDATA/AUTH
		// LOGIN) changes p.terminator; re-scan the remaining buffer under
		// the new terminator on the next loop iteration.
	}
}

func firstToken(line string) string {
	for i, r := range line {
		if r == ' ' || r == ':' {
			return line[:i]
		}
	}
	return line
}

// Reply writes a single-line SMTP reply.
func (p *Parser) Reply(code int, text string) error {
	_, err := p.out.Write(Reply{Code: code, Text: text}.Bytes())
	return err
}

// MultiReply writes a multi-line SMTP reply.
func (p *Parser) MultiReply(code int, lines []string) error {
	_, err := p.out.Write(MultiReply{Code: code, Lines: lines}.Bytes())
	return err
}
