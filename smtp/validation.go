package smtp

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// HeloSchema validates the argument of HELO/EHLO: a single non-empty,
// whitespace-free token. No hostname grammar is enforced: real clients send
// address literals like "[127.0.0.1]", and rejecting those outright is not
// this core's job.
var HeloSchema = SchemaFunc(func(_ Context, argument string) (Args, error) {
	domain := strings.TrimSpace(argument)
	if domain == "" {
		return Args{}, invalid("HELO/EHLO requires a domain argument")
	}
	if strings.ContainsAny(domain, " \t") {
		return Args{}, invalid("HELO/EHLO domain must not contain whitespace")
	}
	return Args{Value: domain}, nil
})

// NoArgsSchema rejects any non-empty argument; used for NOOP, QUIT, RSET
// and the colon-free form of DATA.
var NoArgsSchema = SchemaFunc(func(_ Context, argument string) (Args, error) {
	if strings.TrimSpace(argument) != "" {
		return Args{}, invalid("command takes no arguments")
	}
	return Args{}, nil
})

// HelpSchema allows an optional informational trailing argument (e.g.
// "HELP MAIL") and never rejects it.
var HelpSchema = SchemaFunc(func(_ Context, argument string) (Args, error) {
	return Args{Value: strings.TrimSpace(argument)}, nil
})

// parseAngleAddress extracts the address between angle brackets, or the
// bare token if unbracketed. An unbalanced bracket is always a syntax
// error. allowNullPath permits the explicit empty reverse path "<>" used
// by MAIL FROM for bounce messages; it is never legal for RCPT TO.
func parseAngleAddress(argument string, allowNullPath bool) (string, error) {
	trimmed := strings.TrimSpace(argument)
	hasOpen := strings.HasPrefix(trimmed, "<")
	hasClose := strings.HasSuffix(trimmed, ">")
	if hasOpen != hasClose {
		return "", invalid("unbalanced angle brackets in address")
	}
	if hasOpen {
		inner := trimmed[1 : len(trimmed)-1]
		if inner == "" {
			if allowNullPath {
				return "", nil
			}
			return "", invalid("null reverse path not allowed here")
		}
		return inner, nil
	}
	// Address without surrounding brackets. Reject embedded brackets, which
	// would otherwise indicate the client mismatched them.
	if strings.ContainsAny(trimmed, "<>") {
		return "", invalid("unbalanced angle brackets in address")
	}
	return trimmed, nil
}

func splitExtensions(rest string) []string {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil
	}
	return strings.Fields(rest)
}

// parseExtensions validates the SMTP-extension keyword tokens trailing a
// MAIL FROM address. Every token must be "KEY=VALUE"; the only key the
// core itself understands is SIZE, which must be a positive integer.
// Extensions are rejected outright on a plain (non-ESMTP) connection.
func parseExtensions(ctx Context, tokens []string) (map[string]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if !ctx.IsESMTP {
		return nil, invalid("No SMTP extensions allowed for plain SMTP.")
	}
	extensions := make(map[string]string, len(tokens))
	for _, token := range tokens {
		rawKey, value, ok := strings.Cut(token, "=")
		if !ok || rawKey == "" {
			return nil, invalid("Invalid arguments: %q", token)
		}
		key := strings.ToUpper(rawKey)
		switch key {
		case "SIZE":
			size, err := strconv.Atoi(value)
			if err != nil || size <= 0 {
				return nil, invalid("SIZE extension requires a positive integer")
			}
		default:
			return nil, invalid("Invalid extension: %q", rawKey)
		}
		extensions[key] = value
	}
	return extensions, nil
}

// MailFromSchema validates "MAIL FROM:<addr> [SIZE=n]".
var MailFromSchema = SchemaFunc(func(ctx Context, argument string) (Args, error) {
	addrPart, extPart := splitAddressAndExtensions(argument)
	address, err := parseAngleAddress(addrPart, true)
	if err != nil {
		return Args{}, err
	}
	extensions, err := parseExtensions(ctx, splitExtensions(extPart))
	if err != nil {
		return Args{}, err
	}
	return Args{Value: address, Extensions: extensions}, nil
})

// RcptToSchema validates "RCPT TO:<addr>". The null reverse path is not a
// valid recipient.
var RcptToSchema = SchemaFunc(func(_ Context, argument string) (Args, error) {
	addrPart, extPart := splitAddressAndExtensions(argument)
	if strings.TrimSpace(extPart) != "" {
		return Args{}, invalid("RCPT TO does not accept extensions")
	}
	address, err := parseAngleAddress(addrPart, false)
	if err != nil {
		return Args{}, err
	}
	return Args{Value: address}, nil
})

// splitAddressAndExtensions separates the bracketed-or-bare address from
// any trailing "KEY=VALUE" tokens. The address itself may not contain
// spaces once outside brackets, so the first space after a balanced
// bracket (or the first space at all, if unbracketed) is the boundary.
func splitAddressAndExtensions(argument string) (address, rest string) {
	trimmed := strings.TrimSpace(argument)
	if strings.HasPrefix(trimmed, "<") {
		if end := strings.Index(trimmed, ">"); end != -1 {
			return trimmed[:end+1], trimmed[end+1:]
		}
		return trimmed, ""
	}
	if idx := strings.IndexAny(trimmed, " \t"); idx != -1 {
		return trimmed[:idx], trimmed[idx+1:]
	}
	return trimmed, ""
}

// Credentials is the decoded result of an AUTH PLAIN or AUTH LOGIN
// exchange: the optional authorization identity, the username and the
// password.
type Credentials struct {
	AuthzID  string
	Username string
	Password string
}

// AuthPlainSchema decodes and validates the base64 initial-response
// argument of "AUTH PLAIN", per RFC 4616: base64("authzid\0user\0pass").
// Any malformed input is reported as a single generic syntax error,
// matching the reference behaviour of never hinting to a prospective
// attacker which part of the credential was wrong.
var AuthPlainSchema = SchemaFunc(func(_ Context, argument string) (Args, error) {
	creds, err := decodePlainCredentials(argument)
	if err != nil {
		return Args{}, err
	}
	return Args{Value: creds.Username, Extensions: map[string]string{
		"authzid":  creds.AuthzID,
		"password": creds.Password,
	}}, nil
})

func decodePlainCredentials(argument string) (Credentials, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(argument))
	if err != nil {
		return Credentials{}, invalid("Garbled data sent")
	}
	parts := strings.SplitN(string(decoded), "\x00", 3)
	if len(parts) != 3 {
		return Credentials{}, invalid("Garbled data sent")
	}
	return Credentials{AuthzID: parts[0], Username: parts[1], Password: parts[2]}, nil
}

// AuthLoginSchema validates the optional initial-response argument of
// "AUTH LOGIN": zero arguments, or one base64-encoded username.
var AuthLoginSchema = SchemaFunc(func(_ Context, argument string) (Args, error) {
	trimmed := strings.TrimSpace(argument)
	if trimmed == "" {
		return Args{}, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return Args{}, invalid("Garbled data sent")
	}
	return Args{Value: string(decoded)}, nil
})

// AuthLoginResponseSchema decodes a single base64 token, used for each of
// the two challenge/response steps of "AUTH LOGIN" (username, then
// password).
var AuthLoginResponseSchema = SchemaFunc(func(_ Context, argument string) (Args, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(argument))
	if err != nil {
		return Args{}, invalid("Garbled data sent")
	}
	return Args{Value: string(decoded)}, nil
})
