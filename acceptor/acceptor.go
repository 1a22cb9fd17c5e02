// Package acceptor implements the fixed worker-pool connection acceptor:
// a small number of goroutines share one listening socket and a token
// channel that plays the role of a mutex around Accept(), each servicing
// exactly one connection at a time.
package acceptor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"smtpcore/internal/obslog"
	"smtpcore/session"
)

// PolicyFactory builds a fresh Policy for a newly accepted connection. The
// policy is not required to be safe for concurrent use since each
// connection gets its own instance.
type PolicyFactory func() session.Policy

// AuthenticatorFactory builds a fresh Authenticator for a newly accepted
// connection. May be nil, in which case AUTH is unavailable.
type AuthenticatorFactory func() session.Authenticator

// Acceptor owns the listening socket and the worker pool servicing it.
type Acceptor struct {
	config        Config
	policy        PolicyFactory
	authenticator AuthenticatorFactory
	deliverer     session.Deliverer
	logger        obslog.Logger

	listener *net.TCPListener
	token    chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup

	closeOnce sync.Once
	addrCh    chan net.Addr
}

// New creates an Acceptor. deliverer is shared across every connection and
// must be safe for concurrent use; policy and authenticator are
// constructed fresh per connection.
func New(config Config, policy PolicyFactory, authenticator AuthenticatorFactory, deliverer session.Deliverer, logger obslog.Logger) *Acceptor {
	if logger == nil {
		logger = obslog.NewNop()
	}
	a := &Acceptor{
		config:        config,
		policy:        policy,
		authenticator: authenticator,
		deliverer:     deliverer,
		logger:        logger,
		token:         make(chan struct{}, 1),
		shutdown:      make(chan struct{}),
		addrCh:        make(chan net.Addr, 1),
	}
	a.token <- struct{}{}
	return a
}

// Addr blocks until ListenAndServe has bound its socket (or returns the
// cached address on later calls) and reports what it bound to — useful for
// tests and for hosts that listen on ":0" and need the ephemeral port.
func (a *Acceptor) Addr() net.Addr {
	addr := <-a.addrCh
	a.addrCh <- addr
	return addr
}

// ListenAndServe binds the listening socket, starts the worker pool, and
// blocks until ctx is cancelled or a SIGINT/SIGTERM is received, at which
// point it performs an orderly shutdown.
func (a *Acceptor) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("acceptor: listening on %s: %w", a.config.ListenAddr, err)
	}
	tcpListener, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return fmt.Errorf("acceptor: listener for %s does not support deadlines", a.config.ListenAddr)
	}
	a.listener = tcpListener
	a.addrCh <- tcpListener.Addr()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for i := 0; i < a.config.workerCount(); i++ {
		a.wg.Add(1)
		go a.worker(i)
	}

	a.logger.Info("acceptor listening", obslog.F("addr", a.config.ListenAddr), obslog.F("workers", a.config.workerCount()))

	select {
	case <-ctx.Done():
	case <-sigCh:
	}

	a.Shutdown()
	return nil
}

// Shutdown closes the listening socket and signals every worker to exit
// once it next observes the shutdown channel, then waits for them.
func (a *Acceptor) Shutdown() {
	a.closeOnce.Do(func() {
		close(a.shutdown)
		if a.listener != nil {
			_ = a.listener.Close()
		}
	})
	a.wg.Wait()
}

func (a *Acceptor) worker(id int) {
	defer a.wg.Done()
	for {
		select {
		case <-a.shutdown:
			return
		case <-a.token:
		}

		_ = a.listener.SetDeadline(time.Now().Add(a.config.acceptTimeout()))
		conn, err := a.listener.Accept()
		a.token <- struct{}{}

		if err != nil {
			select {
			case <-a.shutdown:
				return
			default:
			}
			continue
		}

		a.handleConnection(conn)
	}
}

func (a *Acceptor) handleConnection(conn net.Conn) {
	defer conn.Close()

	peer := peerFromAddr(conn.RemoteAddr())
	policy := session.Policy(policyWithConfigFallback{Policy: a.policy(), fallback: a.config.MaxMessageSize})
	var authenticator session.Authenticator
	if a.authenticator != nil {
		authenticator = a.authenticator()
	}

	sess := session.New(conn, peer, a.config.Hostname, policy, authenticator, a.deliverer, a.config.AllowAuthLogin)
	sess.SetLogger(a.logger)
	sess.Start()

	buf := make([]byte, 4096)
	for !sess.Closed() {
		n, err := conn.Read(buf)
		if n > 0 {
			sess.ProcessNewData(buf[:n])
		}
		if err != nil {
			// ClientDisconnected: EOF or a socket error. The session's own
			// writes may already have failed and been ignored; either way
			// the connection is done.
			return
		}
	}
}

func peerFromAddr(addr net.Addr) session.Peer {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return session.Peer{RemoteIP: addr.String()}
	}
	port, _ := strconv.Atoi(portStr)
	return session.Peer{RemoteIP: host, RemotePort: port}
}
