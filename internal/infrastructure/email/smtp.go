package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTPSender delivers campaign messages over SMTP. The Message-ID is
// generated client-side, same as the usual mail-library behavior, so the
// caller always gets an identifier back on success.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	domain string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	domain := host
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}

	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		domain: domain,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("SMTPSender - Send: %w", err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New(), s.domain)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", body)
	m.AddAlternative("text/html", htmlBody(body))

	err := s.dialer.DialAndSend(m)
	if err != nil {
		return "", fmt.Errorf("SMTPSender - Send - s.dialer.DialAndSend: %w", err)
	}

	return messageID, nil
}

func htmlBody(body string) string {
	escaped := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")

	return fmt.Sprintf(
		`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;"><div style="background: #f8fafc; padding: 20px; border-radius: 8px;">%s</div></div>`,
		escaped,
	)
}
