package session

import (
	"smtpcore/fsm"
	"smtpcore/smtp"
)

const (
	stateNew              fsm.State = "new"
	stateGreeted          fsm.State = "greeted"
	stateInitialized      fsm.State = "initialized"
	stateAuthenticated    fsm.State = "authenticated"
	stateSenderKnown      fsm.State = "sender_known"
	stateRecipientKnown   fsm.State = "recipient_known"
	stateReceivingMessage fsm.State = "receiving_message"
	stateFinished         fsm.State = "finished"

	flagESMTP fsm.Flag = "esmtp"
)

var (
	actionGreet     = fsm.Action(smtp.VerbGreet)
	actionHelo      = fsm.Action(smtp.VerbHelo)
	actionEhlo      = fsm.Action(smtp.VerbEhlo)
	actionMailFrom  = fsm.Action(smtp.VerbMailFrom)
	actionRcptTo    = fsm.Action(smtp.VerbRcptTo)
	actionData      = fsm.Action(smtp.VerbData)
	actionMsgData   = fsm.Action(smtp.VerbMsgData)
	actionAuthPlain = fsm.Action(smtp.VerbAuthPlain)
	actionAuthLogin = fsm.Action(smtp.VerbAuthLogin)
	actionNoop      = fsm.Action(smtp.VerbNoop)
	actionHelp      = fsm.Action(smtp.VerbHelp)
	actionQuit      = fsm.Action(smtp.VerbQuit)
	actionRset      = fsm.Action(smtp.VerbRset)
)

// reEhloStates are the states, besides "greeted", from which a HELO/EHLO is
// accepted and treated as RSET followed by the new HELO/EHLO: allow it,
// resetting the in-progress message first.
var reEhloStates = []fsm.State{stateInitialized, stateAuthenticated, stateSenderKnown, stateRecipientKnown}

// buildMachine wires the session's state table. Handlers close over s, so
// the machine must be rebuilt per session; it is not shared across
// connections.
func (s *Session) buildMachine() *fsm.Machine {
	m := fsm.New(stateNew)

	m.Add(stateNew, stateGreeted, actionGreet, nil, nil, nil)

	heloHandler := s.heloOrEhloHandler(false)
	ehloHandler := s.heloOrEhloHandler(true)
	m.Add(stateGreeted, stateInitialized, actionHelo, heloHandler, nil, nil)
	m.Add(stateGreeted, stateInitialized, actionEhlo, ehloHandler, []fsm.Operation{fsm.SetFlag(flagESMTP)}, nil)
	for _, from := range reEhloStates {
		m.Add(from, stateInitialized, actionHelo, heloHandler, nil, nil)
		m.Add(from, stateInitialized, actionEhlo, ehloHandler, []fsm.Operation{fsm.SetFlag(flagESMTP)}, nil)
	}

	m.Add(stateInitialized, stateSenderKnown, actionMailFrom, s.mailFromHandler, nil, nil)
	m.Add(stateInitialized, stateAuthenticated, actionAuthPlain, s.authPlainHandler, nil, fsm.IfSet(flagESMTP))
	m.Add(stateInitialized, stateAuthenticated, actionAuthLogin, s.authLoginHandler, nil, fsm.IfSet(flagESMTP))
	m.Add(stateAuthenticated, stateSenderKnown, actionMailFrom, s.mailFromHandler, nil, nil)

	m.Add(stateSenderKnown, stateRecipientKnown, actionRcptTo, s.rcptToHandler, nil, nil)
	m.Add(stateRecipientKnown, stateRecipientKnown, actionRcptTo, s.rcptToHandler, nil, nil)
	m.Add(stateRecipientKnown, stateReceivingMessage, actionData, s.dataHandler, nil, nil)
	m.Add(stateReceivingMessage, stateInitialized, actionMsgData, s.msgDataHandler, nil, nil)

	for _, state := range []fsm.State{stateGreeted, stateInitialized, stateAuthenticated, stateSenderKnown, stateRecipientKnown, stateReceivingMessage} {
		m.Add(state, state, actionNoop, s.noopHandler, nil, nil)
		m.Add(state, state, actionHelp, s.helpHandler, nil, nil)
		m.Add(state, stateFinished, actionQuit, s.quitHandler, nil, nil)
		m.Add(state, stateInitialized, actionRset, s.rsetHandler, nil, nil)
	}
	m.Add(stateNew, stateNew, actionRset, s.rsetHandler, nil, nil)

	return m
}
