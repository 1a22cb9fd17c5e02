package acceptor

import (
	"testing"

	"smtpcore/session"
)

func TestConfigAcceptTimeoutDefaultsWhenUnset(t *testing.T) {
	c := Config{}
	if c.acceptTimeout() != DefaultAcceptTimeout {
		t.Fatalf("got %v, want %v", c.acceptTimeout(), DefaultAcceptTimeout)
	}
}

func TestConfigAcceptTimeoutHonoursOverride(t *testing.T) {
	c := Config{AcceptTimeout: 7}
	if c.acceptTimeout() != 7 {
		t.Fatalf("got %v, want 7", c.acceptTimeout())
	}
}

func TestConfigWorkerCountDefaultsToOne(t *testing.T) {
	c := Config{}
	if c.workerCount() != 1 {
		t.Fatalf("got %d, want 1", c.workerCount())
	}
}

func TestConfigWorkerCountHonoursOverride(t *testing.T) {
	c := Config{WorkerCount: 5}
	if c.workerCount() != 5 {
		t.Fatalf("got %d, want 5", c.workerCount())
	}
}

func TestPolicyWithConfigFallbackUsesConfigWhenPolicyReturnsNil(t *testing.T) {
	size := 1024
	p := policyWithConfigFallback{Policy: session.DefaultPolicy{}, fallback: &size}
	got := p.MaxMessageSize(session.Peer{})
	if got == nil || *got != 1024 {
		t.Fatalf("got %v, want 1024", got)
	}
}

type fixedSizePolicy struct {
	session.DefaultPolicy
	size *int
}

func (f fixedSizePolicy) MaxMessageSize(session.Peer) *int { return f.size }

func TestPolicyWithConfigFallbackPrefersPolicyOverConfig(t *testing.T) {
	policySize, configSize := 512, 4096
	p := policyWithConfigFallback{Policy: fixedSizePolicy{size: &policySize}, fallback: &configSize}
	got := p.MaxMessageSize(session.Peer{})
	if got == nil || *got != 512 {
		t.Fatalf("got %v, want 512", got)
	}
}
