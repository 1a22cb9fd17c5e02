package session

import "context"

// Policy is the host-supplied decision surface consulted at every
// significant point of the conversation. Every hook is optional in the
// sense that DefaultPolicy accepts everything; a host embeds DefaultPolicy
// and overrides only the hooks it cares about, since Go has no notion of
// an optional interface method.
type Policy interface {
	AcceptNewConnection(peer Peer) Decision
	MaxMessageSize(peer Peer) *int
	EhloLines(peer Peer) []string
	AcceptHelo(helo string, msg *Message) Decision
	AcceptEhlo(ehlo string, msg *Message) Decision
	AcceptAuthPlain(user, pass string, msg *Message) Decision
	AcceptAuthLogin(user string, msg *Message) Decision
	AcceptFrom(sender string, msg *Message) Decision
	AcceptRcptTo(rcpt string, msg *Message) Decision
	AcceptData(msg *Message) Decision
	AcceptMsgData(body []byte, msg *Message) Decision
}

// Authenticator verifies AUTH PLAIN/AUTH LOGIN credentials. A Session is
// given a fresh Authenticator instance per connection, so implementations
// need not be safe for concurrent use across connections, only within one.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string, peer Peer) bool
}

// Deliverer receives a fully accepted Message exactly once. Its methods
// must be safe under concurrent calls: sessions on different connections
// may deliver at the same time, and delivery cannot reject the message —
// the transaction has already been committed on the wire by the time this
// is called.
type Deliverer interface {
	NewMessageAccepted(ctx context.Context, msg *Message) error
}

// DefaultPolicy accepts every connection and every operation with no
// custom reply, declares no maximum message size and no extra EHLO lines.
// Host policies embed it to pick up sensible defaults for the hooks they
// don't need to override.
type DefaultPolicy struct{}

func (DefaultPolicy) AcceptNewConnection(Peer) Decision                { return Accept() }
func (DefaultPolicy) MaxMessageSize(Peer) *int                        { return nil }
func (DefaultPolicy) EhloLines(Peer) []string                         { return nil }
func (DefaultPolicy) AcceptHelo(string, *Message) Decision            { return Accept() }
func (DefaultPolicy) AcceptEhlo(string, *Message) Decision            { return Accept() }
func (DefaultPolicy) AcceptAuthPlain(_, _ string, _ *Message) Decision { return Accept() }
func (DefaultPolicy) AcceptAuthLogin(string, *Message) Decision        { return Accept() }
func (DefaultPolicy) AcceptFrom(string, *Message) Decision             { return Accept() }
func (DefaultPolicy) AcceptRcptTo(string, *Message) Decision           { return Accept() }
func (DefaultPolicy) AcceptData(*Message) Decision                     { return Accept() }
func (DefaultPolicy) AcceptMsgData([]byte, *Message) Decision          { return Accept() }
