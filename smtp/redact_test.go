package smtp

import "testing"

func TestRedactAuthArgsHidesPayload(t *testing.T) {
	cases := map[string]string{
		"AHVzZXIAcGFzcw==":       "[redacted]",
		"PLAIN AHVzZXIAcGFzcw==": "PLAIN [redacted]",
		"":                       "",
	}
	for input, want := range cases {
		if got := RedactAuthArgs(input); got != want {
			t.Errorf("RedactAuthArgs(%q) = %q, want %q", input, got, want)
		}
	}
}
