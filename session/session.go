package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"smtpcore/fsm"
	"smtpcore/internal/obslog"
	"smtpcore/smtp"
)

// Transport is what a Session writes replies to and closes when the
// conversation ends. net.Conn satisfies it.
type Transport interface {
	Write(p []byte) (int, error)
	Close() error
}

type authLoginStep int

const (
	authLoginIdle authLoginStep = iota
	authLoginAwaitingUsername
	authLoginAwaitingPassword
)

// Session drives one accepted connection through the SMTP conversation. It
// is created fresh per connection and must not be shared between
// goroutines.
type Session struct {
	transport      Transport
	peer           Peer
	hostname       string
	policy         Policy
	authenticator  Authenticator
	deliverer      Deliverer
	authLoginOK    bool
	machine        *fsm.Machine
	parser         *smtp.Parser
	message        *Message
	maxMessageSize *int
	pendingArg     string
	authLoginStep  authLoginStep
	authLoginUser  string
	closed         bool
	closeOnce      sync.Once
	logger         obslog.Logger
}

// New creates a Session for a freshly accepted connection. The
// authenticator and deliverer may be nil-free-to-configure-per-host;
// allowLogin controls whether AUTH LOGIN is advertised and accepted in
// addition to AUTH PLAIN.
func New(transport Transport, peer Peer, hostname string, policy Policy, authenticator Authenticator, deliverer Deliverer, allowLogin bool) *Session {
	s := &Session{
		transport:     transport,
		peer:          peer,
		hostname:      hostname,
		policy:        policy,
		authenticator: authenticator,
		deliverer:     deliverer,
		authLoginOK:   allowLogin,
		message:       newMessage(peer),
		logger:        obslog.NewNop(),
	}
	s.machine = s.buildMachine()
	s.parser = smtp.NewParser(transport, s)
	return s
}

// SetLogger installs a structured logger for received-command,
// protocol-violation and policy-denial events. The default is a no-op
// logger.
func (s *Session) SetLogger(logger obslog.Logger) {
	if logger != nil {
		s.logger = logger.With(obslog.F("peer", s.peer.RemoteIP))
	}
}

// Start performs new_connection: consults the policy, and either rejects
// the connection outright or emits the greeting and installs the
// policy-declared maximum message size into the parser.
func (s *Session) Start() {
	decision := s.policy.AcceptNewConnection(s.peer)
	if !decision.accepted() {
		s.applyDecisionOrClose(decision, smtp.CodeServiceUnavailable, []string{"SMTP service not available"})
		s.closeConn()
		return
	}
	s.maxMessageSize = s.policy.MaxMessageSize(s.peer)
	s.parser.SetMaximumMessageSize(s.maxMessageSize)
	_ = s.machine.Execute(actionGreet)
	s.applyDecisionOrClose(decision, smtp.CodeReady, []string{fmt.Sprintf("%s Hello %s", s.hostname, s.peer.RemoteIP)})
}

// ProcessNewData feeds newly read transport bytes to the parser. Callers
// (the acceptor) read raw bytes off the connection and hand them here.
func (s *Session) ProcessNewData(data []byte) {
	if s.closed {
		return
	}
	s.parser.ProcessNewData(data)
}

// Closed reports whether the session has torn down its transport, either
// on QUIT, a policy-demanded close, or a transport fault.
func (s *Session) Closed() bool { return s.closed }

// HandleInput implements smtp.Receiver: it is called by the parser once a
// logical command unit (or MSGDATA payload) has been assembled.
func (s *Session) HandleInput(verb, argument string) {
	if s.closed {
		return
	}
	if verb == smtp.VerbAuthContinuation {
		s.logger.Debug("command received", obslog.F("verb", verb), obslog.F("argument", smtp.RedactAuthArgs(argument)))
		s.handleAuthContinuation(argument)
		return
	}

	s.logger.Debug("command received", obslog.F("verb", verb), obslog.F("argument", loggableArgument(verb, argument)))

	action := fsm.Action(strings.ToUpper(verb))
	if !s.machine.KnownActions()[action] {
		s.reply(smtp.CodeUnrecognizedCommand, fmt.Sprintf("unrecognized command %q", verb))
		return
	}
	if !s.machine.AllowedActions()[action] {
		s.reply(smtp.CodeBadSequence, fmt.Sprintf("Command %q is not allowed here, expected one of %s", verb, strings.Join(s.AllowedCommands(), ", ")))
		return
	}
	if action == actionAuthLogin {
		s.beginAuthLogin(argument)
		return
	}

	s.pendingArg = argument
	if err := s.machine.Execute(action); err != nil {
		s.reportHandlerError(err)
		return
	}
	if s.machine.State() == stateFinished {
		s.closeConn()
	}
}

// InputExceedsLimits implements smtp.Receiver.
func (s *Session) InputExceedsLimits() {
	s.reply(smtp.CodeExceedsStorage, "message exceeds fixed maximum message size")
}

// AllowedCommands lists the wire verbs currently allowed by the state
// machine, sorted, excluding the internal pseudo-verbs. Host applications
// and tests use this to introspect the session's current capability set.
func (s *Session) AllowedCommands() []string {
	allowed := s.machine.AllowedActions()
	out := make([]string, 0, len(allowed))
	for action := range allowed {
		verb := string(action)
		switch verb {
		case smtp.VerbGreet, smtp.VerbMsgData, smtp.VerbAuthContinuation:
			continue
		}
		out = append(out, verb)
	}
	sort.Strings(out)
	return out
}

// loggableArgument returns argument unchanged, except for AUTH PLAIN and
// AUTH LOGIN, whose arguments may carry a base64 credential blob that must
// never reach a log line.
func loggableArgument(verb, argument string) string {
	if verb == smtp.VerbAuthPlain || verb == smtp.VerbAuthLogin {
		return smtp.RedactAuthArgs(argument)
	}
	return argument
}

func (s *Session) reply(code int, text string) {
	if s.closed {
		return
	}
	if err := s.parser.Reply(code, text); err != nil {
		s.handleWriteError()
	}
}

func (s *Session) replyLines(code int, lines []string) {
	if s.closed {
		return
	}
	var err error
	if len(lines) <= 1 {
		text := ""
		if len(lines) == 1 {
			text = lines[0]
		}
		err = s.parser.Reply(code, text)
	} else {
		err = s.parser.MultiReply(code, lines)
	}
	if err != nil {
		s.handleWriteError()
	}
}

func (s *Session) handleWriteError() {
	s.closeConn()
}

func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		s.closed = true
		_ = s.transport.Close()
	})
}

// applyDecision writes either the decision's custom reply or the default
// reply, honouring close_before_response / close_after_response.
func (s *Session) applyDecision(decision Decision, defaultCode int, defaultLines []string) {
	if decision.closeBefore {
		s.closeConn()
		return
	}
	if decision.reply != nil {
		s.replyLines(decision.reply.code, decision.reply.lines)
	} else {
		s.replyLines(defaultCode, defaultLines)
	}
	if decision.closeAfter {
		s.closeConn()
	}
}

// applyDecisionOrClose is applyDecision for the new-connection call site: a
// rejected connection still gets the policy's custom reply, or the default
// reply when the policy supplied none, unless the policy demanded
// close_before_response.
func (s *Session) applyDecisionOrClose(decision Decision, defaultCode int, defaultLines []string) {
	s.applyDecision(decision, defaultCode, defaultLines)
}

func (s *Session) reportHandlerError(err error) {
	switch e := err.(type) {
	case *protocolError:
		s.logger.Debug("protocol violation", obslog.F("code", e.code), obslog.F("reason", e.msg))
		s.reply(e.code, e.msg)
	case *policyDenial:
		s.logger.Warn("policy denial", obslog.F("default_code", e.defaultCode))
		s.applyDecision(e.decision, e.defaultCode, []string{e.defaultMsg})
	default:
		s.logger.Error("unexpected session error", err)
		s.reply(smtp.CodeTempLocalProblem, "internal error")
	}
}

func (s *Session) authenticatorContext() context.Context {
	return context.Background()
}
