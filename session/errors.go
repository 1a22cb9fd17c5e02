package session

import "errors"

// protocolError represents a client-caused protocol violation: unknown
// verb, verb used in the wrong state, malformed argument. It is always
// surfaced to the client as a 5xx reply; the session stays open and the
// state machine does not advance.
type protocolError struct {
	code int
	msg  string
}

func (e *protocolError) Error() string { return e.msg }

// policyDenial wraps a Decision that rejected an operation, carrying
// whichever default reply applies when the policy supplied no custom one.
type policyDenial struct {
	decision    Decision
	defaultCode int
	defaultMsg  string
}

func (e *policyDenial) Error() string { return e.defaultMsg }

// errDisconnected names the transport-fault error kind (client disconnect
// or write error). The session does not return it: on a failed write it
// closes the connection (handleWriteError) and attempts no further writes.
var errDisconnected = errors.New("client disconnected")
