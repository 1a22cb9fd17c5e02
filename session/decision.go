package session

// customReply is the optional reply a Decision carries in place of the
// command's default positive or negative reply.
type customReply struct {
	code  int
	lines []string
}

// Decision is the value policy hooks return: whether to accept, an
// optional custom reply, and two independent close flags.
type Decision struct {
	accept      bool
	reply       *customReply
	closeBefore bool
	closeAfter  bool
}

// Accept allows the operation with the command's default positive reply.
func Accept() Decision { return Decision{accept: true} }

// Reject denies the operation with the command's default negative reply
// (550 Administrative Prohibition for most commands, 554 for a new
// connection, 535 for AUTH).
func Reject() Decision { return Decision{accept: false} }

// AcceptWithReply allows the operation but sends a custom reply instead of
// the default. A single line produces a single-line reply; more than one
// line produces a multi-line reply.
func AcceptWithReply(code int, lines ...string) Decision {
	return Decision{accept: true, reply: &customReply{code: code, lines: lines}}
}

// RejectWithReply denies the operation with a custom reply instead of the
// default negative reply.
func RejectWithReply(code int, lines ...string) Decision {
	return Decision{accept: false, reply: &customReply{code: code, lines: lines}}
}

// CloseBefore marks the connection to be closed without sending any
// further reply at all (not even the custom one).
func (d Decision) CloseBefore() Decision {
	d.closeBefore = true
	return d
}

// CloseAfter marks the connection to be closed immediately after the
// reply for this operation has been sent.
func (d Decision) CloseAfter() Decision {
	d.closeAfter = true
	return d
}

func (d Decision) accepted() bool { return d.accept }
