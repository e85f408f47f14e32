package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig configures the mail sink. Auth is optional; unauthenticated
// relays (e.g. a local postfix) are common for intranet deployments.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	To       []string
	Username string
	Password string
}

// SMTPSink emails notifications to the facilities team list.
type SMTPSink struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSink constructs a mail sink.
func NewSMTPSink(cfg SMTPConfig) *SMTPSink {
	if cfg.From == "" {
		cfg.From = "facilities@localhost"
	}
	return &SMTPSink{cfg: cfg, send: smtp.SendMail}
}

// Deliver implements Sink. Notifications without recipients are dropped
// silently.
func (s *SMTPSink) Deliver(_ context.Context, n Notification) error {
	if len(s.cfg.To) == 0 {
		return nil
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		host := s.cfg.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, host)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.cfg.From, strings.Join(s.cfg.To, ", "), n.Title, n.Message)
	return s.send(s.cfg.Addr, auth, s.cfg.From, s.cfg.To, []byte(msg))
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
