package smtp

import "fmt"

// ValidationError reports that a command's arguments were syntactically or
// semantically invalid. The session maps this to a 501 reply and keeps the
// session open, per the protocol-violation error kind.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Context carries the ambient facts a Schema needs beyond the raw argument
// string: whether the session has negotiated ESMTP (governs whether MAIL
// FROM extensions like SIZE are permitted at all).
type Context struct {
	IsESMTP bool
}

// Args is the parsed, validated result of a Schema: the positional value
// (address, domain, credential) plus any recognised keyword extensions.
type Args struct {
	Value      string
	Extensions map[string]string
}

// Schema validates and parses the argument string of one command.
type Schema interface {
	Parse(ctx Context, argument string) (Args, error)
}

// SchemaFunc adapts a function to the Schema interface.
type SchemaFunc func(ctx Context, argument string) (Args, error)

// Parse implements Schema.
func (f SchemaFunc) Parse(ctx Context, argument string) (Args, error) { return f(ctx, argument) }
