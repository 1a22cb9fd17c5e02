// Package auth provides a static-credential session.Authenticator.
package auth

import (
	"context"
	"crypto/subtle"

	"smtpcore/session"
)

// Credential is one username/password pair a StaticAuthenticator accepts.
type Credential struct {
	Username string
	Password string
}

// StaticAuthenticator authenticates against a fixed, in-memory set of
// credentials. It is meant for tests and small deployments; hosts with a
// real user store implement session.Authenticator directly.
type StaticAuthenticator struct {
	byUsername map[string]string
}

// NewStaticAuthenticator builds a StaticAuthenticator from the given
// credentials. Later entries for the same username win.
func NewStaticAuthenticator(credentials ...Credential) *StaticAuthenticator {
	a := &StaticAuthenticator{byUsername: make(map[string]string, len(credentials))}
	for _, c := range credentials {
		a.byUsername[c.Username] = c.Password
	}
	return a
}

// Authenticate implements session.Authenticator. Comparison is constant
// time to avoid leaking password length/content through timing.
func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string, _ session.Peer) bool {
	want, ok := a.byUsername[username]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}
