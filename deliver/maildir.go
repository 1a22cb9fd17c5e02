// Package deliver provides example session.Deliverer implementations for
// host applications: a Maildir-backed deliverer for real persistence, and
// an in-memory deliverer useful in tests. Persistence itself is out of
// scope for the core; these are collaborators a host wires in, exactly as
// the core's Deliverer interface expects.
package deliver

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	maildir "github.com/sloonz/go-maildir"

	"smtpcore/session"
)

// MaildirDeliverer writes every accepted message into a per-recipient
// Maildir under root, one delivery per recipient. It is safe for
// concurrent use, matching the core's requirement that a Deliverer be
// shared across connections.
type MaildirDeliverer struct {
	root string

	mu   sync.Mutex
	dirs map[string]maildir.Dir
}

// NewMaildirDeliverer creates a deliverer rooted at root. Per-recipient
// subdirectories are created lazily, on first delivery to that recipient.
func NewMaildirDeliverer(root string) *MaildirDeliverer {
	return &MaildirDeliverer{root: root, dirs: make(map[string]maildir.Dir)}
}

func (d *MaildirDeliverer) dirFor(recipient string) (maildir.Dir, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dir, ok := d.dirs[recipient]; ok {
		return dir, nil
	}
	dir := maildir.Dir(filepath.Join(d.root, sanitizeRecipient(recipient)))
	if err := dir.Create(); err != nil {
		return "", fmt.Errorf("deliver: creating maildir for %q: %w", recipient, err)
	}
	d.dirs[recipient] = dir
	return dir, nil
}

// NewMessageAccepted implements session.Deliverer.
func (d *MaildirDeliverer) NewMessageAccepted(ctx context.Context, msg *session.Message) error {
	for _, recipient := range msg.Recipients {
		dir, err := d.dirFor(recipient)
		if err != nil {
			return err
		}
		delivery, err := dir.NewDelivery()
		if err != nil {
			return fmt.Errorf("deliver: opening delivery for %q: %w", recipient, err)
		}
		if _, err := delivery.Write(msg.Body); err != nil {
			_ = delivery.Close()
			return fmt.Errorf("deliver: writing message for %q: %w", recipient, err)
		}
		if err := delivery.Close(); err != nil {
			return fmt.Errorf("deliver: closing delivery for %q: %w", recipient, err)
		}
	}
	return nil
}

func sanitizeRecipient(recipient string) string {
	out := make([]byte, 0, len(recipient))
	for i := 0; i < len(recipient); i++ {
		c := recipient[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
