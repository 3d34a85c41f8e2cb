package mailer

import (
	"github.com/dontidros/natours-project/logger"
)

// DevMailer logs e-mails instead of delivering them. Sent messages are kept
// so tests can inspect them.
type DevMailer struct {
	Sent []Message
}

type Message struct {
	To      string
	Subject string
	URL     string
}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendWelcome(toEmail, toName, url string) error {
	return d.record(toEmail, toName, "Welcome to the Natours Family!", url)
}

func (d *DevMailer) SendPasswordReset(toEmail, toName, resetURL string) error {
	return d.record(toEmail, toName, "Your password reset token (valid for only 10 minutes)", resetURL)
}

func (d *DevMailer) record(to, name, subject, url string) error {
	logger.Info("[DEV MAIL]", "to", to, "name", firstName(name), "subject", subject, "url", url)
	d.Sent = append(d.Sent, Message{To: to, Subject: subject, URL: url})
	return nil
}
