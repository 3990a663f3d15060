// internal/common/mail/ses.go
package mail

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESMailer sends through Amazon SES using the raw-message API so
// attachments survive intact.
type SESMailer struct {
	client *ses.Client
}

// NewSESMailer creates an SES-backed mailer for the given region.
func NewSESMailer(ctx context.Context, region string) (*SESMailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(cfg)}, nil
}

// Send delivers one message via SendRawEmail.
func (m *SESMailer) Send(ctx context.Context, msg *Message) error {
	raw := BuildMIMEMessage(msg)
	_, err := m.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		RawMessage: &types.RawMessage{Data: []byte(raw)},
	})
	if err != nil {
		return fmt.Errorf("ses send raw email: %w", err)
	}
	return nil
}
