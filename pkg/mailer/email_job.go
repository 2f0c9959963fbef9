package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Text is the plain body; HTML is optional. Kind tags the notification so
// the worker can pick a subject when none is given (e.g. "password_changed",
// "email_changed").
type EmailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// SubjectFor returns a default subject for a notification kind.
func SubjectFor(kind string) string {
	switch kind {
	case "password_changed":
		return "Your password was changed"
	case "email_changed":
		return "Your account email was updated"
	default:
		return "Notification"
	}
}
