package session

import (
	"fmt"
	"strconv"

	"smtpcore/fsm"
	"smtpcore/smtp"
)

func (s *Session) heloOrEhloHandler(isEhlo bool) fsm.Handler {
	return func(from, to fsm.State, action fsm.Action) error {
		args, err := smtp.HeloSchema.Parse(smtp.Context{IsESMTP: s.message.IsESMTP}, s.pendingArg)
		if err != nil {
			return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
		}
		if from != stateGreeted {
			s.message = s.message.reset()
		}
		s.message.HeloOrEhlo = args.Value
		s.message.IsESMTP = isEhlo

		var decision Decision
		if isEhlo {
			decision = s.policy.AcceptEhlo(args.Value, s.message)
		} else {
			decision = s.policy.AcceptHelo(args.Value, s.message)
		}
		if !decision.accepted() {
			return &policyDenial{decision: decision, defaultCode: smtp.CodeMailboxUnavailable, defaultMsg: "Administrative Prohibition"}
		}

		if isEhlo {
			s.applyDecision(decision, smtp.CodeOK, s.capabilityLines())
		} else {
			s.applyDecision(decision, smtp.CodeOK, []string{s.hostname})
		}
		return nil
	}
}

func (s *Session) capabilityLines() []string {
	lines := []string{s.hostname}
	if s.authenticator != nil {
		mechanisms := "AUTH PLAIN"
		if s.authLoginOK {
			mechanisms += " LOGIN"
		}
		lines = append(lines, mechanisms)
	}
	if s.maxMessageSize != nil {
		lines = append(lines, fmt.Sprintf("SIZE %d", *s.maxMessageSize))
	}
	lines = append(lines, "HELP")
	lines = append(lines, s.policy.EhloLines(s.peer)...)
	return lines
}

func (s *Session) mailFromHandler(from, to fsm.State, action fsm.Action) error {
	args, err := smtp.MailFromSchema.Parse(smtp.Context{IsESMTP: s.message.IsESMTP}, s.pendingArg)
	if err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	if s.maxMessageSize != nil {
		if raw, ok := args.Extensions["SIZE"]; ok {
			if size, convErr := strconv.Atoi(raw); convErr == nil && size > *s.maxMessageSize {
				return &protocolError{code: smtp.CodeExceedsStorage, msg: "message exceeds fixed maximum message size"}
			}
		}
	}
	sender := args.Value
	decision := s.policy.AcceptFrom(sender, s.message)
	if !decision.accepted() {
		return &policyDenial{decision: decision, defaultCode: smtp.CodeMailboxUnavailable, defaultMsg: "Administrative Prohibition"}
	}
	s.message.Sender = &sender
	s.applyDecision(decision, smtp.CodeOK, []string{"OK"})
	return nil
}

func (s *Session) rcptToHandler(from, to fsm.State, action fsm.Action) error {
	args, err := smtp.RcptToSchema.Parse(smtp.Context{IsESMTP: s.message.IsESMTP}, s.pendingArg)
	if err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	decision := s.policy.AcceptRcptTo(args.Value, s.message)
	if !decision.accepted() {
		return &policyDenial{decision: decision, defaultCode: smtp.CodeMailboxUnavailable, defaultMsg: "Administrative Prohibition"}
	}
	s.message.Recipients = append(s.message.Recipients, args.Value)
	s.applyDecision(decision, smtp.CodeOK, []string{"OK"})
	return nil
}

func (s *Session) dataHandler(from, to fsm.State, action fsm.Action) error {
	if _, err := smtp.NoArgsSchema.Parse(smtp.Context{}, s.pendingArg); err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	decision := s.policy.AcceptData(s.message)
	if !decision.accepted() {
		return &policyDenial{decision: decision, defaultCode: smtp.CodeMailboxUnavailable, defaultMsg: "Administrative Prohibition"}
	}
	s.applyDecision(decision, smtp.CodeStartMailInput, []string{`Enter message, ending with "." on a line by itself`})
	if !s.closed {
		s.parser.SwitchToDataMode()
	}
	return nil
}

func (s *Session) msgDataHandler(from, to fsm.State, action fsm.Action) error {
	s.parser.SwitchToCommandMode()
	body := []byte(s.pendingArg)

	if s.maxMessageSize != nil && len(body) > *s.maxMessageSize {
		s.reply(smtp.CodeExceedsStorage, "message exceeds fixed maximum message size")
		s.message = s.message.reset()
		return nil
	}

	decision := s.policy.AcceptMsgData(body, s.message)
	if !decision.accepted() {
		s.applyDecision(decision, smtp.CodeMailboxUnavailable, []string{"Administrative Prohibition"})
		s.message = s.message.reset()
		return nil
	}

	s.message.Body = body
	if s.deliverer != nil {
		_ = s.deliverer.NewMessageAccepted(s.authenticatorContext(), s.message)
	}
	s.applyDecision(decision, smtp.CodeOK, []string{"OK"})
	s.message = s.message.reset()
	return nil
}

func (s *Session) noopHandler(from, to fsm.State, action fsm.Action) error {
	if _, err := smtp.NoArgsSchema.Parse(smtp.Context{}, s.pendingArg); err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	s.reply(smtp.CodeOK, "OK")
	return nil
}

func (s *Session) helpHandler(from, to fsm.State, action fsm.Action) error {
	if _, err := smtp.HelpSchema.Parse(smtp.Context{}, s.pendingArg); err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	s.replyLines(smtp.CodeHelp, append([]string{"Commands supported:"}, s.AllowedCommands()...))
	return nil
}

func (s *Session) quitHandler(from, to fsm.State, action fsm.Action) error {
	if _, err := smtp.NoArgsSchema.Parse(smtp.Context{}, s.pendingArg); err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	s.reply(smtp.CodeClosing, fmt.Sprintf("%s closing connection", s.hostname))
	return nil
}

func (s *Session) rsetHandler(from, to fsm.State, action fsm.Action) error {
	if _, err := smtp.NoArgsSchema.Parse(smtp.Context{}, s.pendingArg); err != nil {
		return &protocolError{code: smtp.CodeSyntaxError, msg: err.Error()}
	}
	s.message = s.message.reset()
	s.reply(smtp.CodeOK, "Reset OK")
	return nil
}
