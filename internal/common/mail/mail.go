// internal/common/mail/mail.go
package mail

import "context"

// Attachment is one file carried by an outgoing message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

// Message is one outgoing notification email.
type Message struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Mailer delivers messages through an external relay.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
