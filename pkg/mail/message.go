package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, msg Message) error

func (f MailerFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message represents an outbound plain text email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// normalize trims and deduplicates recipients and applies the fallback sender.
func (m Message) normalize(defaultFrom string) (Message, error) {
	out := m
	out.From = strings.TrimSpace(m.From)
	if out.From == "" {
		out.From = defaultFrom
	}
	if out.From == "" {
		return out, errors.New("mail: sender address is required")
	}
	if _, err := mail.ParseAddress(out.From); err != nil {
		return out, fmt.Errorf("mail: invalid from address: %w", err)
	}

	seen := make(map[string]struct{}, len(m.To))
	out.To = out.To[:0:0]
	for _, addr := range m.To {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return out, fmt.Errorf("mail: invalid recipient address %q: %w", addr, err)
		}
		seen[key] = struct{}{}
		out.To = append(out.To, addr)
	}
	if len(out.To) == 0 {
		return out, errors.New("mail: at least one recipient is required")
	}
	return out, nil
}

// render produces the RFC 5322 payload written during the DATA phase.
func (m Message) render(now time.Time) string {
	var b strings.Builder
	writeHeader(&b, "From", m.From)
	writeHeader(&b, "To", strings.Join(m.To, ", "))
	writeHeader(&b, "Subject", m.Subject)
	writeHeader(&b, "Date", now.UTC().Format(time.RFC1123Z))
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return b.String()
}

func writeHeader(b *strings.Builder, name, value string) {
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}
