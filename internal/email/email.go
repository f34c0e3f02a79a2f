// Package email provides the outgoing mail service used by the task
// digest and incident notifications.
package email

import "net/mail"

// Message is a single outgoing email.
type Message struct {
	To      []mail.Address
	Subject string
	Body    string
}

// HasRecipients reports whether the message has anyone to go to.
func (m *Message) HasRecipients() bool { return len(m.To) > 0 }

// Service is any backend that can send messages. Sends are synchronous;
// callers run inside scheduled jobs or CLI commands where blocking is fine.
type Service interface {
	SendMessages(messages ...*Message) error
}

// Backend names accepted by the configuration.
const (
	BackendSendgrid = "sendgrid"
	BackendConsole  = "console"
)
