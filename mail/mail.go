// Package mail delivers transactional email over SMTP. Delivery failures
// are the caller's to log; they must never change the user-visible
// outcome of a password-reset request.
package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"devnotes/config"
)

// SendPasswordReset mails the reset link to the given address.
func SendPasswordReset(to, resetURL string) error {
	cfg := config.AppConfig
	if cfg.SMTPHost == "" {
		return fmt.Errorf("smtp not configured")
	}

	headers := []string{
		"From: " + cfg.MailSender,
		"To: " + to,
		"Subject: Password reset for " + cfg.AppName,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
	}
	body := fmt.Sprintf(
		"Someone requested a password reset for your %s account.\r\n\r\n"+
			"Follow this link to choose a new password:\r\n%s\r\n\r\n"+
			"The link expires shortly. If you did not request this, ignore this email.\r\n",
		cfg.AppName, resetURL)
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + body

	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	var a smtp.Auth
	if cfg.SMTPUser != "" {
		a = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return smtp.SendMail(addr, a, cfg.MailSender, []string{to}, []byte(msg))
}
