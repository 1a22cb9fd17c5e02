package smtp

import (
	"sort"
	"strings"
)

// Internal verb identifiers. These are the action names the session's state
// machine and dispatch table use — not necessarily literal wire tokens.
// "GREET" and "MSGDATA" are pseudo-verbs, never produced by RecognizeVerb:
// the session triggers GREET itself on accept, and the parser delivers
// MSGDATA when it finishes assembling a DATA payload.
const (
	VerbHelo      = "HELO"
	VerbEhlo      = "EHLO"
	VerbMailFrom  = "MAIL FROM"
	VerbRcptTo    = "RCPT TO"
	VerbData      = "DATA"
	VerbRset      = "RSET"
	VerbNoop      = "NOOP"
	VerbHelp      = "HELP"
	VerbQuit      = "QUIT"
	VerbAuthPlain = "AUTH PLAIN"
	VerbAuthLogin = "AUTH LOGIN"

	VerbGreet            = "GREET"
	VerbMsgData          = "MSGDATA"
	VerbAuthContinuation = "AUTHCONTINUATION"
)

// allWireVerbs lists every verb RecognizeVerb may return, longest (in word
// count) first so that "MAIL FROM" is tried before any hypothetical bare
// "MAIL" and "AUTH PLAIN"/"AUTH LOGIN" are tried before a bare "AUTH" (which
// is deliberately absent from the table: a lone "AUTH" is not a known
// internal verb, since AUTH PLAIN and AUTH LOGIN are the only recognised
// AUTH forms).
var allWireVerbs = sortedByWordCountDesc([]string{
	VerbHelo, VerbEhlo, VerbMailFrom, VerbRcptTo, VerbData, VerbRset,
	VerbNoop, VerbHelp, VerbQuit, VerbAuthPlain, VerbAuthLogin,
})

func sortedByWordCountDesc(verbs []string) []string {
	out := append([]string(nil), verbs...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Count(out[i], " ") > strings.Count(out[j], " ")
	})
	return out
}

// RecognizeVerb demultiplexes a single stripped command line into (verb,
// argument). Recognition is case-insensitive; the separator between verb
// and argument is whitespace or ':' (so "MAIL FROM:<a@b>" and
// "MAIL FROM: <a@b>" both recognise verb "MAIL FROM"). The argument is
// trimmed of surrounding whitespace. ok is false if line does not start
// with any known verb.
func RecognizeVerb(line string) (verb string, argument string, ok bool) {
	trimmed := strings.TrimSpace(line)
	upper := strings.ToUpper(trimmed)
	for _, candidate := range allWireVerbs {
		if rest, matched := matchVerb(upper, trimmed, candidate); matched {
			return candidate, rest, true
		}
	}
	return "", "", false
}

func matchVerb(upper, original, verb string) (string, bool) {
	if upper == verb {
		return "", true
	}
	if len(upper) <= len(verb) || upper[:len(verb)] != verb {
		return "", false
	}
	switch upper[len(verb)] {
	case ' ', ':':
		return strings.TrimSpace(original[len(verb)+1:]), true
	default:
		return "", false
	}
}
