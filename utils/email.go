package utils

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SMTPSender delivers plain email through an SMTP relay.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
	fromName string

	// send is smtp.SendMail, replaced in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, username, password, from, fromName string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		send:     smtp.SendMail,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, email EmailMessage) (*NotificationResult, error) {
	if s == nil || s.host == "" || s.from == "" {
		return nil, ErrChannelNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := s.send(addr, auth, s.from, []string{email.To}, s.buildMessage(email)); err != nil {
		logrus.Errorf("Failed to send email to %s: %v", MaskEmail(email.To), err)
		return &NotificationResult{Success: false, Error: err.Error()}, err
	}

	logrus.Debugf("Email sent to %s", MaskEmail(email.To))
	return &NotificationResult{Success: true}, nil
}

func (s *SMTPSender) buildMessage(email EmailMessage) []byte {
	contentType := "text/plain"
	if email.IsHTML {
		contentType = "text/html"
	}

	from := s.from
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.from)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + email.To + "\r\n")
	b.WriteString("Subject: " + email.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(email.Body)
	return []byte(b.String())
}
