// Package session implements the orchestration layer of the SMTP core: it
// wires the generic state machine and the command parser together with the
// host-supplied Policy, Authenticator and Deliverer collaborators to drive
// one accepted connection through a full SMTP conversation.
package session

// Peer identifies the remote end of an accepted connection. It is
// immutable for the life of a Session.
type Peer struct {
	RemoteIP   string
	RemotePort int
}

// Message is the envelope under construction for the current mail
// transaction. A Session owns exactly one Message at a time; RSET and a
// completed DATA transaction both replace it with a fresh one.
type Message struct {
	Peer        Peer
	HeloOrEhlo  string
	IsESMTP     bool
	Username    *string
	Sender      *string
	Recipients  []string
	Body        []byte
	Unvalidated map[string]string
}

func newMessage(peer Peer) *Message {
	return &Message{Peer: peer, Unvalidated: map[string]string{}}
}

// reset returns a fresh Message inheriting only peer, HELO/EHLO name,
// ESMTP status and authenticated username from msg, as required on RSET
// and after a completed DATA transaction.
func (msg *Message) reset() *Message {
	fresh := newMessage(msg.Peer)
	fresh.HeloOrEhlo = msg.HeloOrEhlo
	fresh.IsESMTP = msg.IsESMTP
	fresh.Username = msg.Username
	return fresh
}
