package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *MailerSendClient) SendWelcome(toEmail, toName, url string) error {
	subject := "Welcome to the Natours Family!"
	html := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Welcome to Natours, we're glad to have you 🎉🙏</p>
		<p>We're all a big family here, so make sure to upload your user photo so we get to know you a bit better!</p>
		<p><a href="%s">Upload user photo</a></p>
	`, firstName(toName), url)
	text := fmt.Sprintf("Hi %s,\n\nWelcome to Natours! Upload your user photo here: %s", firstName(toName), url)
	return m.send(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) SendPasswordReset(toEmail, toName, resetURL string) error {
	subject := "Your password reset token (valid for only 10 minutes)"
	html := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
		<p><a href="%s">%s</a></p>
		<p>If you didn't forget your password, please ignore this email!</p>
	`, firstName(toName), resetURL, resetURL)
	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\nIf you didn't forget your password, please ignore this email!", resetURL)
	return m.send(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) send(toEmail, toName, subject, text, html string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
