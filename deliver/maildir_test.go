package deliver

import "testing"

func TestSanitizeRecipientReplacesUnsafeCharacters(t *testing.T) {
	cases := map[string]string{
		"alice@example.test": "alice_example.test",
		"a.b-c_d@e.test":     "a.b-c_d_e.test",
		"<bob@example.test>": "_bob_example.test_",
	}
	for input, want := range cases {
		if got := sanitizeRecipient(input); got != want {
			t.Errorf("sanitizeRecipient(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewMaildirDelivererStartsWithNoCachedDirs(t *testing.T) {
	d := NewMaildirDeliverer("/tmp/does-not-need-to-exist-yet")
	if len(d.dirs) != 0 {
		t.Fatalf("expected no cached directories before first delivery, got %d", len(d.dirs))
	}
}
