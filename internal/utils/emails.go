package utils

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Mailer sends account emails over SMTP. With no username configured it logs
// and drops every message, which keeps local development working without a
// mail account.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	log    *slog.Logger
}

func NewMailer(host string, port int, username, password string, log *slog.Logger) *Mailer {
	if username == "" {
		return &Mailer{log: log}
	}
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   username,
		log:    log,
	}
}

// Send sends an email with an HTML body.
func (m *Mailer) Send(to, subject, body string) error {
	if m.dialer == nil {
		m.log.Info("mailer not configured, dropping email", "to", to, "subject", subject)
		return nil
	}

	mailer := gomail.NewMessage()
	mailer.SetHeader("From", m.from)
	mailer.SetHeader("To", to)
	mailer.SetHeader("Subject", subject)
	mailer.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(mailer); err != nil {
		m.log.Error("failed to send email", "to", to, "error", err)
		return err
	}
	m.log.Info("email sent", "to", to, "subject", subject)
	return nil
}

// SendVerificationEmail sends the signup verification link.
func (m *Mailer) SendVerificationEmail(to, displayName, verificationURL string) error {
	body := fmt.Sprintf(`
	<html>
	<body style="font-family: Arial, sans-serif; color: #333;">
		<h2>Email Verification</h2>
		<p>Hi %s,</p>
		<p>Thank you for signing up! Please verify your email by clicking the link below:</p>
		<p><a href="%s">Verify Email</a></p>
		<p>If you did not sign up for this account, you can safely ignore this email.</p>
	</body>
	</html>`, displayName, verificationURL)
	return m.Send(to, "Email Verification", body)
}

// SendWelcomeEmail follows a successful verification.
func (m *Mailer) SendWelcomeEmail(to, displayName string) error {
	body := fmt.Sprintf(`
	<html>
	<body style="font-family: Arial, sans-serif; color: #333;">
		<h2>Welcome!</h2>
		<p>Hi %s,</p>
		<p>Your email is verified and your account is ready. You can now sign in.</p>
	</body>
	</html>`, displayName)
	return m.Send(to, "Welcome", body)
}
