package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"

	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/config"
	"github.com/bazarly/commerce-platform-identity/internal/infra/logger"
)

// Template identifiers consumed by the verification and reset flows.
const (
	TemplateVerifyEmail   = "verify_email"
	TemplateResetPassword = "reset_password"
)

var emailTemplates = map[string]*struct {
	subject string
	body    *template.Template
}{
	TemplateVerifyEmail: {
		subject: "Verify your email address",
		body: template.Must(template.New(TemplateVerifyEmail).Parse(
			`<p>Hello {{.FirstName}},</p>
<p>Confirm your email address by entering this verification token or following the link in your app:</p>
<p><strong>{{.Token}}</strong></p>
<p>The token expires at {{.ExpiresAt}}.</p>`)),
	},
	TemplateResetPassword: {
		subject: "Reset your password",
		body: template.Must(template.New(TemplateResetPassword).Parse(
			`<p>Hello,</p>
<p>Use this token to reset your password:</p>
<p><strong>{{.Token}}</strong></p>
<p>The token expires at {{.ExpiresAt}}. If you did not request a reset, ignore this message.</p>`)),
	},
}

// SMTPEmailSender delivers templated email over SMTP with plain auth.
type SMTPEmailSender struct {
	cfg    config.SMTPSettings
	logger *zap.Logger
	// devMode short-circuits delivery to structured logs when credentials
	// are absent.
	devMode bool
}

// NewSMTPEmailSender constructs the transactional email transport.
func NewSMTPEmailSender(cfg config.SMTPSettings, log *zap.Logger) *SMTPEmailSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPEmailSender{
		cfg:     cfg,
		logger:  log,
		devMode: cfg.Username == "" || cfg.Password == "",
	}
}

// Send renders the template and delivers it to the recipient.
func (s *SMTPEmailSender) Send(ctx context.Context, to string, templateID string, vars map[string]string) error {
	tpl, ok := emailTemplates[templateID]
	if !ok {
		return fmt.Errorf("unknown email template %q", templateID)
	}

	var body bytes.Buffer
	if err := tpl.body.Execute(&body, vars); err != nil {
		return fmt.Errorf("render email template %s: %w", templateID, err)
	}

	if s.devMode {
		s.logger.Info("email delivery skipped (dev mode)",
			zap.String("to", logger.MaskEmail(to)),
			zap.String("template", templateID),
		)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMIMEMessage(s.cfg.From, s.cfg.FromName, to, tpl.subject, body.String())
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send email via %s: %w", s.cfg.Host, err)
	}

	s.logger.Info("email dispatched",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("template", templateID),
	)
	return nil
}

func buildMIMEMessage(from, fromName, to, subject, htmlBody string) []byte {
	var buf bytes.Buffer
	if fromName != "" {
		fmt.Fprintf(&buf, "From: %s <%s>\r\n", fromName, from)
	} else {
		fmt.Fprintf(&buf, "From: %s\r\n", from)
	}
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(htmlBody)
	return buf.Bytes()
}

var _ port.EmailSender = (*SMTPEmailSender)(nil)
