package acceptor

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"smtpcore/session"
)

func TestAcceptorServesAGreetingAndQuit(t *testing.T) {
	a := New(
		Config{ListenAddr: "127.0.0.1:0", Hostname: "mail.example.test", WorkerCount: 1, AcceptTimeout: 50 * time.Millisecond},
		func() session.Policy { return session.DefaultPolicy{} },
		nil,
		nil,
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ListenAndServe(ctx) }()

	addr := a.Addr()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	greeting, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading greeting: %v", err)
	}
	if !strings.HasPrefix(greeting, "220 ") {
		t.Fatalf("got greeting %q, want 220 prefix", greeting)
	}

	if _, err := conn.Write([]byte("QUIT\r\n")); err != nil {
		t.Fatalf("writing QUIT: %v", err)
	}
	quitReply, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading QUIT reply: %v", err)
	}
	if !strings.HasPrefix(quitReply, "221 ") {
		t.Fatalf("got reply %q, want 221 prefix", quitReply)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not shut down in time")
	}
}

func TestPeerFromAddrSplitsHostAndPort(t *testing.T) {
	peer := peerFromAddr(&net.TCPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4242})
	if peer.RemoteIP != "203.0.113.9" || peer.RemotePort != 4242 {
		t.Fatalf("got %+v", peer)
	}
}
