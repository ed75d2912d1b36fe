package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // empty for unauthenticated relay
	Password string
	From     string // used when a message has no From
}

// SMTPSender delivers messages with go-mail, one connection per message.
type SMTPSender struct {
	host   string
	from   string
	opts   []mail.Option
	logger *slog.Logger
}

// NewSMTPSender validates config and fixes the TLS policy by port: implicit
// TLS on 465, mandatory STARTTLS on 587, opportunistic otherwise.
func NewSMTPSender(config SMTPConfig, logger *slog.Logger) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, errors.New("smtp: host is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Port == 0 {
		config.Port = 587
	}

	opts := []mail.Option{mail.WithPort(config.Port), mail.WithTimeout(30 * time.Second)}
	switch config.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	return &SMTPSender{host: config.Host, from: config.From, opts: opts, logger: logger}, nil
}

func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp: failed to create client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp: send to %s: %w", s.host, err)
	}

	s.logger.Info("email sent", "subject", m.Subject, "message_id", m.MessageID)
	return nil
}

func (s *SMTPSender) build(m *Message) (*mail.Msg, error) {
	msg := mail.NewMsg()

	from := m.From
	if from == "" {
		from = s.from
	}
	if err := msg.From(from); err != nil {
		return nil, errors.Join(ErrInvalidFromAddress, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, errors.Join(ErrInvalidToAddress, err)
	}
	msg.Subject(m.Subject)
	if m.MessageID != "" {
		msg.SetMessageIDWithValue(m.MessageID)
	}
	for k, v := range m.Headers {
		msg.SetGenHeader(mail.Header(k), v)
	}

	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}
	return msg, nil
}
