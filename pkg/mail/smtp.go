package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

func (s SMTPSettings) validate() error {
	if !s.Enabled {
		return nil
	}
	if strings.TrimSpace(s.Host) == "" {
		return errors.New("smtp: host is required when enabled")
	}
	if s.Port <= 0 {
		return errors.New("smtp: port is required when enabled")
	}
	return nil
}

type smtpClient interface {
	Mail(string) error
	Rcpt(string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
	Auth(smtp.Auth) error
}

type dialFunc func(ctx context.Context, cfg SMTPSettings) (smtpClient, error)

// SMTPMailer sends messages over a fresh SMTP connection per message.
type SMTPMailer struct {
	cfg  SMTPSettings
	dial dialFunc
	now  func() time.Time
}

func NewSMTPMailer(cfg SMTPSettings) (*SMTPMailer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPMailer{cfg: cfg, dial: dialSMTP, now: time.Now}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}

	msg, err := msg.normalize(m.cfg.From)
	if err != nil {
		return err
	}

	client, err := m.dial(ctx, m.cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if user := strings.TrimSpace(m.cfg.Username); user != "" {
		if err := client.Auth(smtp.PlainAuth("", user, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}
	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data command: %w", err)
	}
	if _, err := io.WriteString(wc, msg.render(m.now())); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp: close data writer: %w", err)
	}
	return client.Quit()
}

func dialSMTP(ctx context.Context, cfg SMTPSettings) (smtpClient, error) {
	address := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	tlsCfg := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", address, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp: new client: %w", err)
	}
	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp: start tls: %w", err)
			}
		}
	}
	return client, nil
}
