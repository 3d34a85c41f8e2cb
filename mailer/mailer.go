package mailer

// Service sends the account e-mails of the application.
type Service interface {
	SendWelcome(toEmail, toName, url string) error
	SendPasswordReset(toEmail, toName, resetURL string) error
}

func firstName(name string) string {
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	return name
}
