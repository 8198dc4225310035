// Package notify sends run progress notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/Faultbox/segmata/internal/config"
	"github.com/Faultbox/segmata/internal/report"
)

// ErrNoRecipients is returned when mail notification is enabled without recipients.
var ErrNoRecipients = errors.New("notify: no recipients configured")

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer e-mails a progress summary with the current reference render attached.
type Mailer struct {
	from   string
	to     []string
	client sender
}

// NewMailer builds an SMTP notifier from cfg.
func NewMailer(cfg config.NotifyConfig) (*Mailer, error) {
	if len(cfg.To) == 0 {
		return nil, ErrNoRecipients
	}
	if cfg.SMTPHost == "" {
		return nil, errors.New("notify: no SMTP host configured")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: creating SMTP client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Mailer{from: from, to: cfg.To, client: client}, nil
}

// Notify sends one message describing the run so far.
func (m *Mailer) Notify(ctx context.Context, r *report.Report, attachment string) error {
	msg, err := m.message(r, attachment)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: sending mail: %w", err)
	}
	return nil
}

func (m *Mailer) message(r *report.Report, attachment string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("notify: invalid sender: %w", err)
	}
	if err := msg.To(m.to...); err != nil {
		return nil, fmt.Errorf("notify: invalid recipient: %w", err)
	}

	pass := 0
	if last := r.Last(); last != nil {
		pass = last.Pass + 1
	}
	msg.Subject(fmt.Sprintf("segmata: %s pass %d", r.MeshName, pass))
	msg.SetBodyString(mail.TypeTextPlain, Body(r))

	if attachment != "" {
		if _, err := os.Stat(attachment); err == nil {
			msg.AttachFile(attachment)
		}
	}
	return msg, nil
}

// Body formats the plain text summary used in notifications.
func Body(r *report.Report) string {
	var b strings.Builder
	s := r.Summary()
	fmt.Fprintf(&b, "Mesh: %s (%d vertices)\n", r.MeshName, r.VertexCount)
	fmt.Fprintf(&b, "Seed: %d\n", r.Seed)
	fmt.Fprintf(&b, "Passes: %d (%d failed)\n", s.Passes, s.Failed)
	fmt.Fprintf(&b, "Moves: %d over %d vertices\n", s.TotalMoves, s.VerticesMoved)
	if last := r.Last(); last != nil {
		if last.Failed() {
			fmt.Fprintf(&b, "Last pass %d failed: %v\n", last.Pass+1, last.Err)
		} else {
			fmt.Fprintf(&b, "Last pass %d: moved %d of %d vertices (%.2f %%)\n",
				last.Pass+1, last.Moved(), last.VertexCount, last.MovedPercent())
		}
	}
	return b.String()
}

// Nop discards notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, *report.Report, string) error { return nil }

// New returns a Mailer when notifications are enabled and Nop otherwise.
func New(cfg config.NotifyConfig) (report.Notifier, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewMailer(cfg)
}
