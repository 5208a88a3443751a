package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds the mail relay settings for EmailNotifier.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// EmailNotifier mails escalations to the operations mailbox.
type EmailNotifier struct {
	cfg SMTPConfig
	to  []string
}

// NewEmailNotifier constructs an EmailNotifier. to must name at least one recipient.
func NewEmailNotifier(cfg SMTPConfig, to ...string) (*EmailNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("email notifier: smtp host is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("email notifier: from address is required")
	}
	if len(to) == 0 {
		return nil, errors.New("email notifier: no recipients")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &EmailNotifier{cfg: cfg, to: to}, nil
}

// Notify sends one plain-text mail per message.
func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	m, err := n.buildMsg(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(n.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.cfg.Username),
			gomail.WithPassword(n.cfg.Password),
		)
	}
	client, err := gomail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *EmailNotifier) buildMsg(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if n.cfg.FromName != "" {
		if err := m.FromFormat(n.cfg.FromName, n.cfg.FromEmail); err != nil {
			return nil, fmt.Errorf("smtp from: %w", err)
		}
	} else if err := m.From(n.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(n.to...); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject())
	m.SetBodyString(gomail.TypeTextPlain, msg.Body())
	return m, nil
}
