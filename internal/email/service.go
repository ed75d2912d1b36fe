package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Service renders order emails and hands them to a Sender.
type Service struct {
	sender Sender
	from   string
	domain string
	html   *htmltemplate.Template
	text   *texttemplate.Template
}

// NewService parses the embedded templates. fromAddress also supplies the
// domain used in Message-IDs.
func NewService(sender Sender, fromAddress, fromName string) (*Service, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html email templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text email templates: %w", err)
	}

	domain := "localhost"
	if _, d, ok := strings.Cut(fromAddress, "@"); ok && d != "" {
		domain = d
	}
	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}

	return &Service{sender: sender, from: from, domain: domain, html: html, text: text}, nil
}

func (s *Service) SendOrderPaid(ctx context.Context, data OrderPaidEmail) error {
	return s.send(ctx, data)
}

func (s *Service) SendOrderShipped(ctx context.Context, data OrderShippedEmail) error {
	return s.send(ctx, data)
}

func (s *Service) send(ctx context.Context, t Template) error {
	if t.Recipient() == "" {
		return ErrNoRecipient
	}

	msg, err := s.render(t)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email for %s: %w", t.Name(), t.Reference(), err)
	}
	return nil
}

func (s *Service) render(t Template) (*Message, error) {
	htmlName, textName := t.Name()+".html", t.Name()+".txt"
	if s.html.Lookup(htmlName) == nil || s.text.Lookup(textName) == nil {
		return nil, ErrTemplateNotFound(t.Name())
	}

	var html, text bytes.Buffer
	if err := s.html.ExecuteTemplate(&html, htmlName, t); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", htmlName, err)
	}
	if err := s.text.ExecuteTemplate(&text, textName, t); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", textName, err)
	}

	return &Message{
		To:        t.Recipient(),
		From:      s.from,
		Subject:   t.Subject(),
		HTML:      html.String(),
		Text:      strings.TrimSpace(text.String()) + "\n",
		MessageID: fmt.Sprintf("%s.%s@%s", t.Name(), t.Reference(), s.domain),
		Headers:   map[string]string{"X-Order-Number": t.Reference()},
	}, nil
}
