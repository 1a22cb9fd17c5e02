package session

import (
	"encoding/base64"

	"smtpcore/fsm"
	"smtpcore/smtp"
)

func (s *Session) authPlainHandler(from, to fsm.State, action fsm.Action) error {
	args, err := smtp.AuthPlainSchema.Parse(smtp.Context{IsESMTP: s.message.IsESMTP}, s.pendingArg)
	if err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	username := args.Value
	password := args.Extensions["password"]
	return s.finishAuthentication(username, password, s.policy.AcceptAuthPlain(username, password, s.message))
}

// authLoginHandler is the state machine's handler for the AUTH LOGIN
// transition. It is never invoked directly off a single wire command;
// beginAuthLogin/handleAuthContinuation drive the two-step challenge and
// only call machine.Execute(actionAuthLogin) once both the username and
// the password have been collected.
func (s *Session) authLoginHandler(from, to fsm.State, action fsm.Action) error {
	username := s.authLoginUser
	password := s.pendingArg
	return s.finishAuthentication(username, password, s.policy.AcceptAuthLogin(username, s.message))
}

func (s *Session) finishAuthentication(username, password string, decision Decision) error {
	if !decision.accepted() {
		return &policyDenial{decision: decision, defaultCode: smtp.CodeAuthFailed, defaultMsg: "Bad username or password"}
	}
	if s.authenticator == nil {
		return &protocolError{code: smtp.CodeAuthFailed, msg: "AUTH not available"}
	}
	if !s.authenticator.Authenticate(s.authenticatorContext(), username, password, s.peer) {
		return &protocolError{code: smtp.CodeAuthFailed, msg: "Bad username or password"}
	}
	s.message.Username = &username
	s.applyDecision(decision, smtp.CodeAuthSuccessful, []string{"Authentication successful"})
	return nil
}

// beginAuthLogin handles the initial "AUTH LOGIN [initial-response]"
// command. It never itself advances the state machine: the transition
// fires only once handleAuthContinuation has collected both the username
// and the password.
func (s *Session) beginAuthLogin(argument string) {
	if !s.authLoginOK {
		s.reply(smtp.CodeNotImplemented, "AUTH LOGIN not supported")
		return
	}
	args, err := smtp.AuthLoginSchema.Parse(smtp.Context{}, argument)
	if err != nil {
		s.reply(smtp.CodeSyntaxError, err.Error())
		return
	}
	s.parser.SwitchToAuthReplyMode()
	if args.Value != "" {
		s.authLoginUser = args.Value
		s.authLoginStep = authLoginAwaitingPassword
		s.reply(smtp.CodeAuthContinue, base64.StdEncoding.EncodeToString([]byte("Password:")))
		return
	}
	s.authLoginStep = authLoginAwaitingUsername
	s.reply(smtp.CodeAuthContinue, base64.StdEncoding.EncodeToString([]byte("Username:")))
}

// handleAuthContinuation processes one base64 line of an AUTH LOGIN
// challenge/response exchange.
func (s *Session) handleAuthContinuation(raw string) {
	step := s.authLoginStep
	s.authLoginStep = authLoginIdle

	args, err := smtp.AuthLoginResponseSchema.Parse(smtp.Context{}, raw)
	if err != nil {
		s.parser.SwitchToCommandMode()
		s.reply(smtp.CodeSyntaxError, err.Error())
		return
	}

	switch step {
	case authLoginAwaitingUsername:
		s.authLoginUser = args.Value
		s.authLoginStep = authLoginAwaitingPassword
		s.reply(smtp.CodeAuthContinue, base64.StdEncoding.EncodeToString([]byte("Password:")))
	case authLoginAwaitingPassword:
		s.parser.SwitchToCommandMode()
		s.pendingArg = args.Value
		if err := s.machine.Execute(actionAuthLogin); err != nil {
			s.reportHandlerError(err)
		}
	default:
		s.parser.SwitchToCommandMode()
		s.reply(smtp.CodeBadSequence, "unexpected AUTH LOGIN response")
	}
}
