package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	goReset "github.com/MrEthical07/goReset"
)

// SMTPConfig configures SMTPAdapter. With UseTLS the adapter dials an
// implicit TLS port (465); otherwise it uses smtp.SendMail, which upgrades
// with STARTTLS when the server offers it.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
	UseTLS   bool
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPAdapter emails the reset code to the identifier.
type SMTPAdapter struct {
	config SMTPConfig
	send   sendFunc
}

func NewSMTPAdapter(cfg SMTPConfig) (*SMTPAdapter, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = "Your password reset code"
	}

	a := &SMTPAdapter{config: cfg}
	a.send = smtp.SendMail
	if cfg.UseTLS {
		a.send = a.sendWithTLS
	}
	return a, nil
}

// Deliver sends msg. net/smtp has no context support, so the send runs on
// its own goroutine and Deliver returns when ctx is done.
func (a *SMTPAdapter) Deliver(ctx context.Context, msg goReset.DeliveryMessage) error {
	if !strings.Contains(msg.Identifier, "@") {
		return fmt.Errorf("identifier %q is not an email address", msg.Identifier)
	}

	addr := net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))
	var auth smtp.Auth
	if a.config.Username != "" {
		auth = smtp.PlainAuth("", a.config.Username, a.config.Password, a.config.Host)
	}
	body := a.buildMessage(msg)

	done := make(chan error, 1)
	go func() {
		done <- a.send(addr, auth, a.config.From, []string{msg.Identifier}, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *SMTPAdapter) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, message []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: a.config.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, a.config.Host)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("set to: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("get writer: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return client.Quit()
}

func (a *SMTPAdapter) buildMessage(msg goReset.DeliveryMessage) []byte {
	greeting := "Hello,"
	if msg.DisplayName != "" {
		greeting = "Hello " + msg.DisplayName + ","
	}

	var b strings.Builder
	b.WriteString("From: " + a.config.From + "\r\n")
	b.WriteString("To: " + msg.Identifier + "\r\n")
	b.WriteString("Subject: " + a.config.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	if msg.RequestID != "" {
		b.WriteString("X-Reset-Request-ID: " + msg.RequestID + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(greeting + "\r\n\r\n")
	b.WriteString("Your password reset code is " + msg.Code + ".\r\n")
	b.WriteString("It expires at " + msg.ExpiresAt.UTC().Format(time.RFC1123) + ".\r\n\r\n")
	b.WriteString("If you did not request a reset you can ignore this message.\r\n")
	return []byte(b.String())
}
