package smtp

import "strings"

// RedactAuthArgs returns argument with any credential payload replaced by a
// placeholder, safe to pass to a logger. AUTH PLAIN/LOGIN arguments carry a
// base64 blob (and, for AUTH PLAIN, an optional leading "PLAIN "); both are
// collapsed to the same marker so logs never carry key material.
func RedactAuthArgs(argument string) string {
	fields := strings.Fields(argument)
	if len(fields) == 0 {
		return argument
	}
	if len(fields) == 1 {
		return "[redacted]"
	}
	return fields[0] + " [redacted]"
}
