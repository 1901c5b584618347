package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/ports/adapter"
)

var _ adapter.EmailSender = (*SMTPSender)(nil)

// SMTPSender delivers HTML mail over plain SMTP with AUTH PLAIN. SMTP has no
// server-assigned id on submit, so the Message-ID header we set is returned.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
	host string
}

func NewSMTPSender(cfg *config.EmailConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp: host and from are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.Host, port),
		auth: auth,
		from: cfg.From,
		host: cfg.Host,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) (string, error) {
	msgID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.host)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", msgID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	// smtp.SendMail has no ctx hook; run it in a goroutine so callers can
	// still give up on a wedged connection.
	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(b.String()))
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("smtp send: %w", err)
		}
		return msgID, nil
	}
}
