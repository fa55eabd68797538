// Package email delivers sign-in links.
package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

const (
	DefaultSMTPAddr = "localhost:1025"
	DefaultFrom     = "no-reply@workoutplan.local"
)

var ErrNoRecipient = errors.New("email: recipient is required")

type Sender interface {
	Send(to, subject, html string) error
}

// StdoutSender logs messages instead of delivering them. Used in development
// when no SMTP server is configured.
type StdoutSender struct {
	Log zerolog.Logger
}

func (s StdoutSender) Send(to, subject, html string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	s.Log.Info().Str("to", to).Str("subject", subject).Msg(html)
	return nil
}

// SMTPSender delivers HTML mail through a plain SMTP relay (MailHog locally).
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(addr, from string) *SMTPSender {
	if addr == "" {
		addr = DefaultSMTPAddr
	}
	if from == "" {
		from = DefaultFrom
	}
	return &SMTPSender{Addr: addr, From: from, send: smtp.SendMail}
}

func (s *SMTPSender) Send(to, subject, html string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	if strings.ContainsAny(to+subject, "\r\n") {
		return errors.New("email: header values must not contain newlines")
	}

	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(s.Addr, s.Auth, s.From, []string{to}, buildMessage(s.From, to, subject, html)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
