package notify

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	// UseSSL selects implicit TLS (usually port 465) instead of STARTTLS.
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
	From      string `yaml:"from,omitempty"`
	Recipient string `yaml:"recipient,omitempty"`
}

const DefaultSMTPPort = 587

func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return errors.New("smtp host is required")
	}
	if c.User == "" {
		return errors.New("smtp user is required")
	}
	if c.Password == "" {
		return errors.New("smtp password is required")
	}
	return nil
}

// SMTPSender sends messages through an authenticated SMTP server.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) From() string {
	return s.cfg.From
}

func (s *SMTPSender) Send(msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("no recipient")
	}
	from := msg.From
	if from == "" {
		from = s.cfg.From
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	for _, a := range msg.Attachments {
		m.Attach(a.Path, gomail.Rename(a.Name()))
	}

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Password)
	d.SSL = s.cfg.UseSSL
	log.Infof("Sending %d attachments to %v via %s:%d", len(msg.Attachments), msg.To, s.cfg.Host, s.cfg.Port)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("sending mail via %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	return nil
}
